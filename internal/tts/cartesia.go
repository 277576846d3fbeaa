// Package tts provides the speech-synthesis pipeline stage, backed by
// Cartesia's websocket streaming API.
package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/reliability"
)

type Config struct {
	APIKey     string
	VoiceID    string
	Model      string
	BaseURL    string
	SampleRate int
}

const (
	apiVersion   = "2025-04-16"
	dialAttempts = 3
	dialBackoff  = 250 * time.Millisecond
	dialCap      = 2 * time.Second
)

// Cartesia is a pipeline stage: language-model text deltas are batched into
// sentences and synthesized; decoded PCM comes back out as audio output
// frames from the read loop.
type Cartesia struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	buf       strings.Builder
	contextID string
}

func NewCartesia(cfg Config) *Cartesia {
	if cfg.Model == "" {
		cfg.Model = "sonic-2"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.cartesia.ai"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	return &Cartesia{cfg: cfg}
}

func (c *Cartesia) Name() string { return "tts" }

func (c *Cartesia) Start(ctx context.Context, emit pipeline.EmitFunc) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read synthesis stream: %w", err)
		}
		c.handleMessage(data, emit)
	}
}

func (c *Cartesia) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	switch t := f.(type) {
	case pipeline.ResponseStartFrame:
		c.mu.Lock()
		c.buf.Reset()
		c.contextID = uuid.NewString()
		c.mu.Unlock()
		emit(f)
		return nil
	case pipeline.TextDeltaFrame:
		c.mu.Lock()
		c.buf.WriteString(t.Text)
		full := c.buf.String()
		sentences, rest := SplitSentences(full)
		c.buf.Reset()
		c.buf.WriteString(rest)
		c.mu.Unlock()
		for _, s := range sentences {
			if err := c.send(s, true); err != nil {
				return err
			}
		}
		emit(f)
		return nil
	case pipeline.ResponseEndFrame:
		c.mu.Lock()
		rest := strings.TrimSpace(c.buf.String())
		c.buf.Reset()
		c.mu.Unlock()
		if rest != "" {
			if err := c.send(rest, true); err != nil {
				return err
			}
		}
		// Empty terminator closes the synthesis context so the provider
		// flushes trailing audio.
		if err := c.send("", false); err != nil {
			return err
		}
		emit(f)
		return nil
	default:
		emit(f)
		return nil
	}
}

func (c *Cartesia) Stop() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Cartesia) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/tts/websocket")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("cartesia_version", apiVersion)
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
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
	return nil, fmt.Errorf("dial tts websocket: %w", lastErr)
}

type synthesisRequest struct {
	ModelID    string `json:"model_id"`
	Transcript string `json:"transcript"`
	Voice      struct {
		Mode string `json:"mode"`
		ID   string `json:"id"`
	} `json:"voice"`
	Language     string `json:"language"`
	ContextID    string `json:"context_id"`
	OutputFormat struct {
		Container  string `json:"container"`
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sample_rate"`
	} `json:"output_format"`
	Continue bool `json:"continue"`
}

func (c *Cartesia) send(transcript string, more bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	req := synthesisRequest{
		ModelID:    c.cfg.Model,
		Transcript: transcript,
		Language:   "en",
		ContextID:  c.contextID,
		Continue:   more,
	}
	req.Voice.Mode = "id"
	req.Voice.ID = c.cfg.VoiceID
	req.OutputFormat.Container = "raw"
	req.OutputFormat.Encoding = "pcm_s16le"
	req.OutputFormat.SampleRate = c.cfg.SampleRate

	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send synthesis request: %w", err)
	}
	return nil
}

type synthesisResponse struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	ContextID string `json:"context_id"`
	Error     string `json:"error"`
}

func (c *Cartesia) handleMessage(data []byte, emit pipeline.EmitFunc) {
	var msg synthesisResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("tts: unparseable message: %v", err)
		return
	}
	switch msg.Type {
	case "chunk":
		pcm, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			log.Printf("tts: bad audio chunk: %v", err)
			return
		}
		if len(pcm) > 0 {
			emit(pipeline.AudioOutputFrame{PCM: pcm, SampleRate: c.cfg.SampleRate})
		}
	case "error":
		log.Printf("tts: provider error: %s", msg.Error)
	case "done", "timestamps":
		// nothing to forward
	}
}
