package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/voxgate/voxgate/internal/audio"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/vad"
)

const (
	roomSampleRate = 48000
	sttSampleRate  = 16000
	opusFrameMS    = 20
)

type LiveKitConfig struct {
	URL      string
	Token    string
	RoomName string
	Params   Params
}

// LiveKit joins a LiveKit Cloud room over WebSocket signaling. Inbound opus
// is decoded and downsampled to 16 kHz for speech recognition; outbound PCM
// is opus-encoded onto a published sample track.
type LiveKit struct {
	cfg LiveKitConfig

	mu       sync.Mutex
	room     *lksdk.Room
	track    *lksdk.LocalSampleTrack
	listener EventListener

	firstJoin sync.Once
	closeOnce sync.Once
	done      chan struct{}
	pcmIn     chan []byte

	input  *liveKitInput
	output *liveKitOutput
}

func NewLiveKit(cfg LiveKitConfig) *LiveKit {
	t := &LiveKit{
		cfg:   cfg,
		done:  make(chan struct{}),
		pcmIn: make(chan []byte, 128),
	}
	t.input = &liveKitInput{t: t}
	t.output = &liveKitOutput{t: t}
	return t
}

func (t *LiveKit) SetListener(l EventListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

func (t *LiveKit) Input() pipeline.Processor  { return t.input }
func (t *LiveKit) Output() pipeline.Processor { return t.output }

// Connect joins the room and, when outbound audio is enabled, publishes the
// agent's voice track.
func (t *LiveKit) Connect(_ context.Context) error {
	cb := &lksdk.RoomCallback{
		OnParticipantConnected:    t.onParticipantConnected,
		OnParticipantDisconnected: t.onParticipantDisconnected,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: t.onTrackSubscribed,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(t.cfg.URL, t.cfg.Token, cb, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return fmt.Errorf("connect to room %q: %w", t.cfg.RoomName, err)
	}

	t.mu.Lock()
	t.room = room
	t.mu.Unlock()

	if t.cfg.Params.AudioOutEnabled {
		track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: roomSampleRate,
			Channels:  1,
		})
		if err != nil {
			return fmt.Errorf("create voice track: %w", err)
		}
		if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
			Name:   "agent-voice",
			Source: livekit.TrackSource_MICROPHONE,
		}); err != nil {
			return fmt.Errorf("publish voice track: %w", err)
		}
		t.mu.Lock()
		t.track = track
		t.mu.Unlock()
	}

	log.Printf("transport: connected to room %q as %q", t.cfg.RoomName, room.LocalParticipant.Identity())
	return nil
}

func (t *LiveKit) SendData(payload []byte) error {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()
	if room == nil {
		return fmt.Errorf("not connected")
	}
	return room.LocalParticipant.PublishDataPacket(lksdk.UserData(payload), lksdk.WithDataPublishReliable(true))
}

func (t *LiveKit) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		room := t.room
		t.room = nil
		t.mu.Unlock()
		if room != nil {
			room.Disconnect()
		}
	})
	return nil
}

func (t *LiveKit) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	t.firstJoin.Do(func() {
		t.mu.Lock()
		l := t.listener
		t.mu.Unlock()
		if l != nil {
			l.OnFirstParticipantJoined(string(rp.Identity()))
		}
	})
}

func (t *LiveKit) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l != nil {
		l.OnParticipantDisconnected(string(rp.Identity()))
	}
}

func (t *LiveKit) onTrackSubscribed(track *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if !t.cfg.Params.AudioInEnabled || track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	log.Printf("transport: subscribed to audio from %q", rp.Identity())
	go t.readTrack(track)
}

func (t *LiveKit) readTrack(track *webrtc.TrackRemote) {
	dec, err := opus.NewDecoder(roomSampleRate, 1)
	if err != nil {
		log.Printf("transport: opus decoder: %v", err)
		return
	}
	// 60 ms at 48 kHz is the largest opus frame we can receive.
	buf := make([]int16, 2880)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, buf)
		if err != nil {
			continue
		}
		pcm := audio.DownsampleBy3(audio.Int16ToPCM16(buf[:n]))
		select {
		case t.pcmIn <- pcm:
		case <-t.done:
			return
		default:
			// Realtime audio: dropping a late frame beats backing up the
			// decoder.
		}
	}
}

// liveKitInput is the pipeline head: decoded room audio plus VAD boundaries.
type liveKitInput struct {
	t *LiveKit
}

func (in *liveKitInput) Name() string { return "transport_in" }

func (in *liveKitInput) Start(ctx context.Context, emit pipeline.EmitFunc) error {
	analyzer := in.t.cfg.Params.VAD
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-in.t.done:
			return nil
		case pcm := <-in.t.pcmIn:
			if analyzer != nil {
				switch analyzer.Process(pcm, time.Now()) {
				case vad.EventSpeechStart:
					emit(pipeline.UserStartedSpeakingFrame{})
				case vad.EventSpeechStop:
					emit(pipeline.UserStoppedSpeakingFrame{})
				}
			}
			emit(pipeline.AudioInputFrame{PCM: pcm, SampleRate: sttSampleRate})
		}
	}
}

func (in *liveKitInput) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	emit(f)
	return nil
}

// liveKitOutput encodes synthesized PCM and writes it to the published track.
type liveKitOutput struct {
	t *LiveKit

	mu      sync.Mutex
	enc     *opus.Encoder
	encRate int
	encErr  error
	pending []byte
	opusBuf []byte
}

func (out *liveKitOutput) Name() string { return "transport_out" }

func (out *liveKitOutput) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	a, ok := f.(pipeline.AudioOutputFrame)
	if !ok {
		emit(f)
		return nil
	}
	if !out.t.cfg.Params.AudioOutEnabled {
		return nil
	}

	out.mu.Lock()
	defer out.mu.Unlock()

	if out.enc == nil && out.encErr == nil {
		out.enc, out.encErr = newOutputEncoder(a.SampleRate)
		out.encRate = a.SampleRate
		out.opusBuf = make([]byte, 1500)
		if out.encErr != nil {
			log.Printf("transport: opus encoder: %v", out.encErr)
		}
	}
	if out.encErr != nil {
		return nil
	}
	if a.SampleRate != out.encRate {
		log.Printf("transport: dropping audio at %d Hz, encoder is %d Hz", a.SampleRate, out.encRate)
		return nil
	}

	out.pending = append(out.pending, a.PCM...)
	frameBytes := out.encRate / 1000 * opusFrameMS * 2
	for len(out.pending) >= frameBytes {
		chunk := out.pending[:frameBytes]
		out.pending = out.pending[frameBytes:]

		n, err := out.enc.Encode(audio.PCM16ToInt16(chunk), out.opusBuf)
		if err != nil {
			log.Printf("transport: opus encode: %v", err)
			continue
		}
		if err := out.t.writeSample(out.opusBuf[:n]); err != nil {
			log.Printf("transport: write sample: %v", err)
		}
	}
	return nil
}

func (out *liveKitOutput) Stop() error {
	out.mu.Lock()
	out.pending = nil
	out.mu.Unlock()
	return nil
}

func newOutputEncoder(rate int) (*opus.Encoder, error) {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus cannot encode %d Hz input", rate)
	}
	return opus.NewEncoder(rate, 1, opus.AppVoIP)
}

func (t *LiveKit) writeSample(data []byte) error {
	t.mu.Lock()
	track := t.track
	t.mu.Unlock()
	if track == nil {
		return nil
	}
	sample := media.Sample{Data: data, Duration: opusFrameMS * time.Millisecond}
	return track.WriteSample(sample, nil)
}
