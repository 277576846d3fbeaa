package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/voxgate/voxgate/internal/pipeline"
)

// Fake is an in-memory Transport for tests: it records outbound audio and
// data, lets tests inject inbound frames, and fires listener events on
// demand.
type Fake struct {
	// ConnectErr, when set, makes Connect fail.
	ConnectErr error

	mu        sync.Mutex
	connected bool
	closed    int
	listener  EventListener
	data      [][]byte
	audio     [][]byte

	inbound chan pipeline.Frame
}

func NewFake() *Fake {
	return &Fake{inbound: make(chan pipeline.Frame, 64)}
}

func (f *Fake) Connect(_ context.Context) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Input() pipeline.Processor  { return &fakeInput{f: f} }
func (f *Fake) Output() pipeline.Processor { return &fakeOutput{f: f} }

func (f *Fake) SendData(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("not connected")
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.data = append(f.data, cp)
	return nil
}

func (f *Fake) SetListener(l EventListener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed++
	f.connected = false
	f.mu.Unlock()
	return nil
}

// PushFrame injects a frame as if it arrived from the room.
func (f *Fake) PushFrame(fr pipeline.Frame) {
	f.inbound <- fr
}

func (f *Fake) FireFirstParticipantJoined(id string) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnFirstParticipantJoined(id)
	}
}

func (f *Fake) FireParticipantDisconnected(id string) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnParticipantDisconnected(id)
	}
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) SentData() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.data))
	copy(out, f.data)
	return out
}

func (f *Fake) WrittenAudio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.audio))
	copy(out, f.audio)
	return out
}

type fakeInput struct {
	f *Fake
}

func (in *fakeInput) Name() string { return "transport_in" }

func (in *fakeInput) Start(ctx context.Context, emit pipeline.EmitFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fr := <-in.f.inbound:
			emit(fr)
		}
	}
}

func (in *fakeInput) Process(_ context.Context, fr pipeline.Frame, emit pipeline.EmitFunc) error {
	emit(fr)
	return nil
}

type fakeOutput struct {
	f *Fake
}

func (out *fakeOutput) Name() string { return "transport_out" }

func (out *fakeOutput) Process(_ context.Context, fr pipeline.Frame, emit pipeline.EmitFunc) error {
	if a, ok := fr.(pipeline.AudioOutputFrame); ok {
		out.f.mu.Lock()
		cp := make([]byte, len(a.PCM))
		copy(cp, a.PCM)
		out.f.audio = append(out.f.audio, cp)
		out.f.mu.Unlock()
		return nil
	}
	emit(fr)
	return nil
}
