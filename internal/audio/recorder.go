package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/pipeline"
)

// Recorder is a pipeline observer that captures inbound and outbound audio
// and flushes each side to a WAV file when the session closes. Debug tooling
// only; enabled by DEBUG_AUDIO_DIR.
type Recorder struct {
	dir  string
	name string

	mu      sync.Mutex
	inPCM   []byte
	inRate  int
	outPCM  []byte
	outRate int
	closed  bool
}

func NewRecorder(dir, sessionName string) *Recorder {
	return &Recorder{dir: dir, name: sessionName}
}

func (r *Recorder) OnFrame(_ string, f pipeline.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	switch a := f.(type) {
	case pipeline.AudioInputFrame:
		r.inPCM = append(r.inPCM, a.PCM...)
		r.inRate = a.SampleRate
	case pipeline.AudioOutputFrame:
		r.outPCM = append(r.outPCM, a.PCM...)
		r.outRate = a.SampleRate
	}
}

// Close writes the captured audio to <dir>/<name>-<ts>-{in,out}.wav.
// Failures are logged, never returned past the cleanup boundary.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	stamp := time.Now().UTC().Format("20060102T150405")
	r.flush(fmt.Sprintf("%s-%s-in.wav", r.name, stamp), r.inPCM, r.inRate)
	r.flush(fmt.Sprintf("%s-%s-out.wav", r.name, stamp), r.outPCM, r.outRate)
	r.inPCM, r.outPCM = nil, nil
}

func (r *Recorder) flush(file string, pcm []byte, rate int) {
	if len(pcm) == 0 {
		return
	}
	path := filepath.Join(r.dir, file)
	f, err := os.Create(path)
	if err != nil {
		log.Printf("audio recorder: create %s: %v", path, err)
		return
	}
	defer f.Close()
	if err := WriteWAVPCM16LETo(f, pcm, rate); err != nil {
		log.Printf("audio recorder: write %s: %v", path, err)
	}
}
