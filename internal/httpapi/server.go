// Package httpapi is the service front door: token endpoints for clients,
// agent spawning, health, and the bundled browser client.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/background"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/observability"
	"github.com/voxgate/voxgate/internal/session"
	"github.com/voxgate/voxgate/internal/token"
)

// AgentRunner is a spawned agent session as the front door sees it.
type AgentRunner interface {
	ID() string
	Run(ctx context.Context) error
	Stop()
}

// AgentFactory builds a runner for one room and participant identity. The
// factory may fail fast, for example on bad provider configuration.
type AgentFactory func(room, identity string) (AgentRunner, error)

type Server struct {
	cfg      config.Config
	issuer   *token.Issuer
	sessions *session.Manager
	spawner  *background.Spawner
	newAgent AgentFactory
	metrics  *observability.Metrics
	static   http.Handler
}

func New(cfg config.Config, issuer *token.Issuer, sessions *session.Manager, spawner *background.Spawner, newAgent AgentFactory, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		issuer:   issuer,
		sessions: sessions,
		spawner:  spawner,
		newAgent: newAgent,
		metrics:  metrics,
		static:   newStaticHandler(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/client", http.StatusTemporaryRedirect)
	})
	r.Get("/client", s.handleClient)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/agent", s.handleSpawnAgent)
	r.Post("/offer", s.handleOffer)
	r.Get("/sessions", s.handleListSessions)

	return r
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	r.URL.Path = "/"
	s.static.ServeHTTP(w, r)
}

// handleHealth always answers 200: the process being up is the health
// signal, configuration problems show up in the body instead.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":             "ok",
		"service":            s.cfg.ServiceName,
		"livekit_configured": s.cfg.LiveKitConfigured(),
		"active_sessions":    s.sessions.ActiveCount(),
		"token_probe":        "skipped",
	}
	if s.cfg.LiveKitConfigured() {
		if _, err := s.issuer.Issue("healthcheck", "healthcheck"); err != nil {
			body["token_probe"] = "failed: " + err.Error()
		} else {
			body["token_probe"] = "ok"
		}
	}
	respondJSON(w, http.StatusOK, body)
}

type spawnAgentRequest struct {
	Room     string `json:"room"`
	Identity string `json:"participant_identity"`
}

// handleSpawnAgent starts an agent session for a room and returns before the
// agent finishes connecting. Nothing stops a second agent being spawned into
// the same room.
func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req spawnAgentRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	req.Room = strings.TrimSpace(req.Room)
	if req.Room == "" {
		respondError(w, http.StatusBadRequest, "missing_room", "room is required")
		return
	}
	if !s.cfg.LiveKitConfigured() {
		respondError(w, http.StatusServiceUnavailable, "livekit_unconfigured", "LiveKit credentials are not configured")
		return
	}

	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		identity = "agent"
	}
	runner, err := s.newAgent(req.Room, identity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "agent_start_failed", err.Error())
		return
	}

	s.spawner.Go("agent:"+req.Room, func(ctx context.Context) error {
		defer runner.Stop()
		return runner.Run(ctx)
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     fmt.Sprintf("agent dispatched to room %q", req.Room),
		"room":        req.Room,
		"participant": identity,
		"session_id":  runner.ID(),
	})
}

type offerRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// handleOffer mints a join token for a human participant. It never spawns an
// agent; clients call /agent separately.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.LiveKitConfigured() {
		respondError(w, http.StatusServiceUnavailable, "livekit_unconfigured", "LiveKit credentials are not configured")
		return
	}

	var req offerRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = "room-" + uuid.NewString()[:8]
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		identity = "user-" + uuid.NewString()[:8]
	}

	tok, err := s.issuer.Issue(room, identity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_failed", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.TokensIssued.WithLabelValues("user").Inc()
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"token":    tok,
		"url":      s.cfg.LiveKitURL,
		"room":     room,
		"identity": identity,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.sessions.List(),
		"active":   s.sessions.ActiveCount(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
