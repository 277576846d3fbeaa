package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxgate/voxgate/internal/background"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/session"
	"github.com/voxgate/voxgate/internal/token"
)

type stubRunner struct {
	id      string
	ran     chan struct{}
	stopped atomic.Bool
}

func (r *stubRunner) ID() string { return r.id }

func (r *stubRunner) Run(_ context.Context) error {
	close(r.ran)
	return nil
}

func (r *stubRunner) Stop() { r.stopped.Store(true) }

func configuredCfg() config.Config {
	return config.Config{
		ServiceName:      "voxgate-test",
		LiveKitURL:       "wss://example.livekit.cloud",
		LiveKitAPIKey:    "APIabcdef",
		LiveKitAPISecret: "secret-secret-secret-secret",
	}
}

func newTestServer(cfg config.Config, factory AgentFactory) (*Server, *background.Spawner) {
	spawner := background.NewSpawner()
	issuer := token.NewIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	return New(cfg, issuer, session.NewManager(), spawner, factory, nil), spawner
}

func TestRootRedirectsToClient(t *testing.T) {
	srv, _ := newTestServer(configuredCfg(), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	if loc := rec.Header().Get("Location"); loc != "/client" {
		t.Fatalf("Location = %q, want /client", loc)
	}
}

func TestClientPageIsServed(t *testing.T) {
	srv, _ := newTestServer(configuredCfg(), nil)
	req := httptest.NewRequest(http.MethodGet, "/client", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("client page does not look like HTML: %q", rec.Body.String()[:min(80, rec.Body.Len())])
	}
}

func TestHealthAlwaysOK(t *testing.T) {
	cases := []struct {
		name       string
		cfg        config.Config
		configured bool
		probe      string
	}{
		{"unconfigured", config.Config{ServiceName: "voxgate-test"}, false, "skipped"},
		{"configured", configuredCfg(), true, "ok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(tc.cfg, nil)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != "ok" {
				t.Fatalf("status field = %v", body["status"])
			}
			if body["livekit_configured"] != tc.configured {
				t.Fatalf("livekit_configured = %v, want %v", body["livekit_configured"], tc.configured)
			}
			if body["token_probe"] != tc.probe {
				t.Fatalf("token_probe = %v, want %q", body["token_probe"], tc.probe)
			}
		})
	}
}

func TestSpawnAgentRequiresRoom(t *testing.T) {
	srv, _ := newTestServer(configuredCfg(), nil)

	for _, body := range []string{"", "{}", `{"room":"  "}`} {
		req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSpawnAgentUnconfiguredReturns503(t *testing.T) {
	srv, _ := newTestServer(config.Config{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"room":"r1"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSpawnAgentRunsSessionInBackground(t *testing.T) {
	runner := &stubRunner{id: "sess-1", ran: make(chan struct{})}
	var gotRoom, gotIdentity string
	srv, spawner := newTestServer(configuredCfg(), func(room, identity string) (AgentRunner, error) {
		gotRoom = room
		gotIdentity = identity
		return runner, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"room":"my-room"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotRoom != "my-room" || gotIdentity != "agent" {
		t.Fatalf("factory got room %q identity %q", gotRoom, gotIdentity)
	}

	select {
	case <-runner.ran:
	case <-time.After(time.Second):
		t.Fatalf("runner never ran")
	}
	if !spawner.Shutdown(time.Second) {
		t.Fatalf("spawner shutdown timed out")
	}
	if !runner.stopped.Load() {
		t.Fatalf("runner never stopped")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "success" || body["room"] != "my-room" {
		t.Fatalf("body = %v", body)
	}
	if body["participant"] != "agent" {
		t.Fatalf("participant = %v", body["participant"])
	}
}

func TestSpawnAgentFactoryFailure(t *testing.T) {
	srv, _ := newTestServer(configuredCfg(), func(string, string) (AgentRunner, error) {
		return nil, context.DeadlineExceeded
	})
	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"room":"r1"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestOfferUnconfiguredReturns503(t *testing.T) {
	srv, _ := newTestServer(config.Config{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestOfferMintsUserToken(t *testing.T) {
	cfg := configuredCfg()
	srv, _ := newTestServer(cfg, nil)
	req := httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status   string `json:"status"`
		Token    string `json:"token"`
		URL      string `json:"url"`
		Room     string `json:"room"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "success" || body.URL != cfg.LiveKitURL {
		t.Fatalf("body = %+v", body)
	}
	if !strings.HasPrefix(body.Room, "room-") {
		t.Fatalf("room = %q, want generated room name", body.Room)
	}

	claims, err := token.Verify(body.Token, cfg.LiveKitAPISecret)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if claims.Room != body.Room {
		t.Fatalf("token room = %q, want %q", claims.Room, body.Room)
	}
	if claims.Agent {
		t.Fatalf("user token carries the agent grant")
	}
}

func TestOfferHonorsRequestedRoom(t *testing.T) {
	srv, _ := newTestServer(configuredCfg(), nil)
	req := httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader(`{"room":"picked","identity":"alice"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["room"] != "picked" || body["identity"] != "alice" {
		t.Fatalf("body = %v", body)
	}
}
