// Package agent runs one voice-agent session: token, room connection, and
// the processing pipeline between them.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/audio"
	"github.com/voxgate/voxgate/internal/convo"
	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/observability"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/rtvi"
	"github.com/voxgate/voxgate/internal/session"
	"github.com/voxgate/voxgate/internal/stt"
	"github.com/voxgate/voxgate/internal/token"
	"github.com/voxgate/voxgate/internal/transport"
	"github.com/voxgate/voxgate/internal/tts"
)

// kickoffInstruction is appended to the conversation when the first
// participant joins, so the bot speaks first.
const kickoffInstruction = "Say hello and briefly introduce yourself."

// Options carries everything a session needs. NewTransport is the seam for
// tests; production wires the LiveKit transport.
type Options struct {
	Room     string
	Identity string

	SystemPrompt  string
	DebugAudioDir string

	STT stt.Config
	LLM llm.Config
	TTS tts.Config

	Issuer   *token.Issuer
	Metrics  *observability.Metrics
	Registry *session.Manager

	NewTransport func(joinToken string) transport.Transport
}

// Session is one agent's lifetime in one room. It implements
// transport.EventListener: the first participant joining triggers the
// greeting, the last callback we care about tears the pipeline down.
type Session struct {
	opts Options
	id   string

	convoCtx *convo.Context

	mu             sync.Mutex
	tr             transport.Transport
	task           *pipeline.Task
	recorder       *audio.Recorder
	joinedAt       time.Time
	kickoffPending bool

	joinOnce sync.Once
	stopOnce sync.Once

	// stagesFn builds the pipeline stages; tests swap it to avoid the real
	// provider connections.
	stagesFn func(tr transport.Transport) []pipeline.Processor
}

func New(opts Options) (*Session, error) {
	if opts.Room == "" {
		return nil, fmt.Errorf("room is required")
	}
	if opts.Identity == "" {
		opts.Identity = "agent"
	}
	if opts.Issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if opts.NewTransport == nil {
		return nil, fmt.Errorf("transport factory is required")
	}

	s := &Session{
		opts:     opts,
		convoCtx: convo.NewContext(opts.SystemPrompt),
	}
	s.stagesFn = s.defaultStages
	if opts.Registry != nil {
		s.id = opts.Registry.Create(opts.Room, opts.Identity).ID
	}
	return s, nil
}

// ID returns the registry identifier, or "" when no registry was configured.
func (s *Session) ID() string { return s.id }

// Run drives the session to completion: issue the agent token, join the
// room, then block inside the pipeline until a participant disconnect or the
// context ends it. Stop is always called before Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.Stop()

	joinToken, err := s.opts.Issuer.IssueAgent(s.opts.Room, s.opts.Identity)
	if err != nil {
		s.fail(err)
		return fmt.Errorf("issue agent token: %w", err)
	}
	s.setState(session.StateTokenIssued)
	if s.opts.Metrics != nil {
		s.opts.Metrics.TokensIssued.WithLabelValues("agent").Inc()
	}

	tr := s.opts.NewTransport(joinToken)
	tr.SetListener(s)
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()

	if err := tr.Connect(ctx); err != nil {
		s.fail(err)
		return fmt.Errorf("connect to room %q: %w", s.opts.Room, err)
	}
	s.setState(session.StateConnected)
	s.countEvent("connected")

	task := pipeline.NewTask(
		pipeline.New(s.stagesFn(tr)...),
		pipeline.Params{EnableMetrics: s.opts.Metrics != nil},
		s.observers(tr)...,
	)

	s.mu.Lock()
	s.task = task
	pending := s.kickoffPending
	s.kickoffPending = false
	s.mu.Unlock()
	if pending {
		// The participant beat the pipeline; fire the greeting now.
		s.queueKickoff(task)
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.ActiveSessions.Inc()
		defer s.opts.Metrics.ActiveSessions.Dec()
	}
	s.setState(session.StatePipelineRunning)
	s.countEvent("pipeline_started")

	runner := pipeline.NewRunner("agent:" + s.opts.Room)
	if err := runner.Run(ctx, task); err != nil {
		s.fail(err)
		return fmt.Errorf("pipeline for room %q: %w", s.opts.Room, err)
	}

	s.setState(session.StateStopped)
	s.countEvent("stopped")
	return nil
}

// Stop tears the session down: cancel the pipeline, leave the room. Each
// step is attempted even when an earlier one fails. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		task := s.task
		tr := s.tr
		rec := s.recorder
		s.mu.Unlock()

		if task != nil {
			task.Cancel()
		}
		if tr != nil {
			if err := tr.Close(); err != nil {
				log.Printf("agent: closing transport for room %q: %v", s.opts.Room, err)
			}
		}
		if rec != nil {
			rec.Close()
		}
	})
}

// OnFirstParticipantJoined appends the kickoff instruction and queues a
// single inference run so the bot greets the user. Later joins are ignored.
func (s *Session) OnFirstParticipantJoined(participantID string) {
	s.joinOnce.Do(func() {
		log.Printf("agent: first participant %q joined room %q", participantID, s.opts.Room)
		s.countEvent("participant_joined")
		s.convoCtx.Append(convo.RoleSystem, kickoffInstruction)

		s.mu.Lock()
		s.joinedAt = time.Now()
		task := s.task
		if task == nil {
			s.kickoffPending = true
		}
		s.mu.Unlock()

		if task != nil {
			s.queueKickoff(task)
		}
	})
}

// OnParticipantDisconnected ends the session. The transport fires this per
// participant; the first disconnect is enough, Cancel is idempotent.
func (s *Session) OnParticipantDisconnected(participantID string) {
	log.Printf("agent: participant %q left room %q, stopping", participantID, s.opts.Room)
	s.countEvent("participant_disconnected")

	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

func (s *Session) queueKickoff(task *pipeline.Task) {
	if err := task.QueueFrame(pipeline.LLMRunFrame{}); err != nil {
		log.Printf("agent: queueing greeting for room %q: %v", s.opts.Room, err)
	}
}

func (s *Session) defaultStages(tr transport.Transport) []pipeline.Processor {
	aggr := convo.NewAggregatorPair(s.convoCtx)
	return []pipeline.Processor{
		tr.Input(),
		rtvi.NewProcessor(tr.SendData),
		stt.NewDeepgram(s.opts.STT),
		aggr.User(),
		llm.NewOpenAI(s.opts.LLM, s.convoCtx),
		tts.NewCartesia(s.opts.TTS),
		tr.Output(),
		aggr.Assistant(),
	}
}

func (s *Session) observers(tr transport.Transport) []pipeline.Observer {
	var obs []pipeline.Observer
	if s.opts.Metrics != nil {
		obs = append(obs, pipeline.NewMetricsObserver(s.opts.Metrics))
		obs = append(obs, &firstAudioObserver{s: s})
	}
	obs = append(obs, rtvi.NewObserver(tr.SendData))
	if s.opts.DebugAudioDir != "" {
		rec := audio.NewRecorder(s.opts.DebugAudioDir, s.opts.Room)
		s.mu.Lock()
		s.recorder = rec
		s.mu.Unlock()
		obs = append(obs, rec)
	}
	return obs
}

func (s *Session) setState(state session.State) {
	if s.opts.Registry == nil {
		return
	}
	if err := s.opts.Registry.SetState(s.id, state); err != nil {
		log.Printf("agent: recording state %q: %v", state, err)
	}
}

func (s *Session) fail(cause error) {
	s.countEvent("failed")
	if s.opts.Registry == nil {
		return
	}
	if err := s.opts.Registry.Fail(s.id, cause); err != nil {
		log.Printf("agent: recording failure: %v", err)
	}
}

func (s *Session) countEvent(event string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

// firstAudioObserver records how long the user waited for the bot's first
// word of the greeting.
type firstAudioObserver struct {
	s    *Session
	once sync.Once
}

func (o *firstAudioObserver) OnFrame(stage string, f pipeline.Frame) {
	if stage != "tts" {
		return
	}
	if _, ok := f.(pipeline.AudioOutputFrame); !ok {
		return
	}
	o.once.Do(func() {
		o.s.mu.Lock()
		joined := o.s.joinedAt
		o.s.mu.Unlock()
		if joined.IsZero() {
			return
		}
		o.s.opts.Metrics.ObserveFirstAudioLatency(time.Since(joined))
	})
}
