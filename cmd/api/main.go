package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkovach/nexus/backend/internal/config"
	"github.com/mkovach/nexus/backend/internal/handler"
	"github.com/mkovach/nexus/backend/internal/model/prompt"
	"github.com/mkovach/nexus/backend/internal/service/ai"
	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	prompts := prompt.NewMemoryStore(prompt.Seed())
	sessions := sessionService.NewService()
	fallback := ai.NewFallback(time.Now().UnixNano())

	var nexus *ai.Service
	if cfg.AI.Enabled() {
		nexus, err = ai.NewService(ctx, prompts, cfg.AI, fallback)
		if err != nil {
			log.Printf("warning: failed to initialize Ark chat model: %v", err)
			log.Println("continuing with scripted Nexus responses only")
			nexus = ai.NewScripted(prompts, fallback)
		} else {
			log.Println("Nexus responder initialized with Ark chat model")
		}
	} else {
		log.Println("Ark credentials not configured, using scripted Nexus responses")
		nexus = ai.NewScripted(prompts, fallback)
	}

	router := handler.NewRouter(sessions, nexus)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Nexus backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
