package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Anansitrading/chat-vrd-backend/internal/config"
	"github.com/Anansitrading/chat-vrd-backend/internal/coordinator"
	"github.com/Anansitrading/chat-vrd-backend/internal/gemini"
	"github.com/Anansitrading/chat-vrd-backend/internal/httpapi"
	"github.com/Anansitrading/chat-vrd-backend/internal/langdetect"
	"github.com/Anansitrading/chat-vrd-backend/internal/observability"
	"github.com/Anansitrading/chat-vrd-backend/internal/rooms"
	"github.com/Anansitrading/chat-vrd-backend/internal/store"
	"github.com/Anansitrading/chat-vrd-backend/internal/synth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	// Each missing credential degrades its endpoints instead of failing
	// startup, so partial deployments still serve the catalog routes.
	flags := httpapi.Flags{
		Daily:    strings.TrimSpace(cfg.DailyAPIKey) != "",
		Google:   strings.TrimSpace(cfg.GoogleAPIKey) != "",
		Cartesia: strings.TrimSpace(cfg.CartesiaAPIKey) != "",
		Deepgram: strings.TrimSpace(cfg.DeepgramAPIKey) != "",
		Database: strings.TrimSpace(cfg.DatabaseURL) != "",
	}

	provider := rooms.NewDailyClient(cfg.DailyAPIKey, cfg.DailyAPIURL, cfg.RoomTTL)
	if !flags.Daily {
		log.Printf("DAILY_API_KEY not set; /connect disabled")
	}

	live := gemini.NewClient(cfg.GoogleAPIKey)
	if !flags.Google {
		log.Printf("GOOGLE_API_KEY not set; /connect disabled")
	}

	var dutchTTS synth.Synthesizer
	if flags.Cartesia {
		dutchTTS = synth.NewClient(cfg.CartesiaAPIKey)
		log.Printf("cartesia synthesis enabled for nl-NL sessions")
	}

	var detector langdetect.Detector
	if flags.Deepgram {
		detector = langdetect.NewClient(cfg.DeepgramAPIKey)
	} else {
		log.Printf("DEEPGRAM_API_KEY not set; /detect-language disabled")
	}

	var archive *store.Archive
	if flags.Database {
		archive, err = store.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init failed: %v", err)
		}
		defer archive.Close()
		log.Printf("session archive enabled")
	}

	coord := coordinator.New(provider, rooms.NewTransport, live, dutchTTS, archive, metrics, coordinator.Settings{
		DefaultModelID:  cfg.DefaultModelID,
		DefaultLanguage: cfg.DefaultLanguage,
		BotName:         cfg.BotName,
		ReadyTimeout:    cfg.BotReadyTimeout,
	})

	api := httpapi.New(cfg, coord, detector, metrics, flags)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
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

	log.Printf("shutdown complete")
}
