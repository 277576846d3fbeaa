package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxgate/voxgate/internal/agent"
	"github.com/voxgate/voxgate/internal/background"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/httpapi"
	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/observability"
	"github.com/voxgate/voxgate/internal/session"
	"github.com/voxgate/voxgate/internal/stt"
	"github.com/voxgate/voxgate/internal/token"
	"github.com/voxgate/voxgate/internal/transport"
	"github.com/voxgate/voxgate/internal/tts"
	"github.com/voxgate/voxgate/internal/turn"
	"github.com/voxgate/voxgate/internal/vad"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	issuer := token.NewIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	sessions := session.NewManager()
	spawner := background.NewSpawner()

	if !cfg.LiveKitConfigured() {
		log.Printf("LiveKit credentials missing: /agent and /offer will answer 503 until LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET are set")
	}

	newAgent := func(room, identity string) (httpapi.AgentRunner, error) {
		sess, err := agent.New(agent.Options{
			Room:          room,
			Identity:      identity,
			SystemPrompt:  cfg.SystemPrompt,
			DebugAudioDir: cfg.DebugAudioDir,
			STT: stt.Config{
				APIKey: cfg.DeepgramAPIKey,
				Model:  cfg.DeepgramModel,
				Turn:   turn.NewAnalyzer(),
			},
			LLM: llm.Config{
				APIKey: cfg.OpenAIAPIKey,
				Model:  cfg.OpenAIModel,
			},
			TTS: tts.Config{
				APIKey:     cfg.CartesiaAPIKey,
				VoiceID:    cfg.CartesiaVoiceID,
				Model:      cfg.CartesiaModel,
				SampleRate: cfg.CartesiaSampleRate,
			},
			Issuer:   issuer,
			Metrics:  metrics,
			Registry: sessions,
			NewTransport: func(joinToken string) transport.Transport {
				return transport.NewLiveKit(transport.LiveKitConfig{
					URL:      cfg.LiveKitURL,
					Token:    joinToken,
					RoomName: room,
					Params: transport.Params{
						AudioInEnabled:  true,
						AudioOutEnabled: true,
						VAD:             vad.NewAnalyzer(vad.Params{StopDuration: cfg.VADStopDuration}),
					},
				})
			},
		})
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	api := httpapi.New(cfg, issuer, sessions, spawner, newAgent, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr(),
		Handler: api.Router(),
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, cfg.BindAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	if !spawner.Shutdown(cfg.ShutdownTimeout) {
		log.Printf("some agent sessions were still running at shutdown deadline")
	}

	log.Printf("shutdown complete")
}
