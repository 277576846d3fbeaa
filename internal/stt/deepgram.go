// Package stt provides the speech-recognition pipeline stage, backed by
// Deepgram's realtime websocket API.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/reliability"
	"github.com/voxgate/voxgate/internal/turn"
)

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	SampleRate int

	// Endpointing is Deepgram's server-side silence window for closing an
	// utterance.
	Endpointing time.Duration

	// Turn optionally supplies semantic end-of-turn hints used to commit a
	// finished-sounding utterance before the endpointing window expires.
	Turn *turn.Analyzer
}

const (
	dialAttempts  = 3
	dialBackoff   = 250 * time.Millisecond
	dialCap       = 2 * time.Second
	keepAliveTick = 8 * time.Second
)

// Deepgram is a pipeline stage: audio input frames are streamed up the
// websocket, transcript frames are emitted from the read loop.
type Deepgram struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn

	pending        strings.Builder
	pendingConf    float64
	utteranceStart time.Time
}

func NewDeepgram(cfg Config) *Deepgram {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.deepgram.com"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Endpointing <= 0 {
		cfg.Endpointing = 300 * time.Millisecond
	}
	return &Deepgram{cfg: cfg}
}

func (d *Deepgram) Name() string { return "stt" }

// Start dials the realtime endpoint and runs the read loop until the context
// ends or the upstream closes.
func (d *Deepgram) Start(ctx context.Context, emit pipeline.EmitFunc) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	go d.keepAlive(ctx)
	go func() {
		<-ctx.Done()
		_ = d.writeControl(`{"type":"CloseStream"}`)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read transcript stream: %w", err)
		}
		d.handleMessage(data, emit)
	}
}

// Process streams audio up the socket and asks for an early finalize when
// the voice-activity detector reports the user stopped talking. All
// non-audio frames pass through untouched.
func (d *Deepgram) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	switch t := f.(type) {
	case pipeline.AudioInputFrame:
		d.mu.Lock()
		conn := d.conn
		var err error
		if conn != nil {
			err = conn.WriteMessage(websocket.BinaryMessage, t.PCM)
		}
		d.mu.Unlock()
		if err != nil {
			return fmt.Errorf("send audio chunk: %w", err)
		}
		return nil
	case pipeline.UserStoppedSpeakingFrame:
		_ = d.writeControl(`{"type":"Finalize"}`)
		emit(f)
		return nil
	default:
		emit(f)
		return nil
	}
}

func (d *Deepgram) Stop() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (d *Deepgram) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(d.cfg.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("model", d.cfg.Model)
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("endpointing", strconv.FormatInt(d.cfg.Endpointing.Milliseconds(), 10))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil && !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reliability.ExponentialBackoff(attempt, dialBackoff, dialCap)):
		}
	}
	return nil, fmt.Errorf("dial stt websocket: %w", lastErr)
}

func (d *Deepgram) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.writeControl(`{"type":"KeepAlive"}`); err != nil {
				return
			}
		}
	}
}

func (d *Deepgram) writeControl(msg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	// speech_final marks the end of an utterance after endpointing silence.
	SpeechFinal bool `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (d *Deepgram) handleMessage(data []byte, emit pipeline.EmitFunc) {
	var msg resultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("stt: unparseable message: %v", err)
		return
	}
	if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
		return
	}
	alt := msg.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	now := time.Now()

	if text != "" && d.utteranceStart.IsZero() {
		d.utteranceStart = now
	}

	if !msg.IsFinal {
		if text == "" {
			return
		}
		emit(pipeline.InterimTranscriptFrame{Text: d.withPending(text), Confidence: alt.Confidence, TimestampMS: now.UnixMilli()})
		return
	}

	// Final segment: accumulate until the utterance closes.
	if text != "" {
		if d.pending.Len() > 0 {
			d.pending.WriteString(" ")
		}
		d.pending.WriteString(text)
		d.pendingConf = alt.Confidence
	}

	commit := msg.SpeechFinal
	if !commit && d.cfg.Turn != nil && d.pending.Len() > 0 {
		if hint, ok := d.cfg.Turn.Analyze(d.pending.String(), d.pendingConf, now.Sub(d.utteranceStart)); ok && hint.ShouldCommit {
			commit = true
		}
	}
	if commit && d.pending.Len() > 0 {
		emit(pipeline.FinalTranscriptFrame{Text: d.pending.String(), Confidence: d.pendingConf, TimestampMS: now.UnixMilli()})
		d.pending.Reset()
		d.pendingConf = 0
		d.utteranceStart = time.Time{}
	}
}

func (d *Deepgram) withPending(interim string) string {
	if d.pending.Len() == 0 {
		return interim
	}
	return d.pending.String() + " " + interim
}
