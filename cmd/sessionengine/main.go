// Command sessionengine runs the loopback-only recording/summarization
// engine: it loads configuration, builds the Session Registry, and
// serves the HTTP API until SIGINT/SIGTERM.
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

	"sessionengine/internal/api"
	"sessionengine/internal/applog"
	"sessionengine/internal/config"
	"sessionengine/internal/output"
	"sessionengine/internal/sessionengine"
	"sessionengine/internal/summarize"
)

func main() {
	// 1. Load and validate configuration.
	cfg := config.Load()
	applog.Setup()

	if err := cfg.Validate(); err != nil {
		log.Printf("configuration invalid: %v", err)
		os.Exit(2)
	}

	// 2. Construct process-wide collaborators.
	writer := output.New()
	throttle := summarize.NewThrottle(cfg.MaxConcurrentLLMCalls)

	registry := sessionengine.NewRegistry(writer, throttle, sessionengine.RuntimeOptions{
		ChunkDurationSeconds: cfg.ChunkDuration.Seconds(),
		MaxQueueDepth:        cfg.MaxQueueDepth,
		StopDrainTimeout:     cfg.StopDrainTimeout,
		AudioSoftDeadline:    cfg.AudioSoftDeadline,
		OllamaURL:            cfg.OllamaURL,
		DevMode:              cfg.IsDev(),
		WhisperModelPath:     cfg.WhisperModelPath,
		ParakeetModelPath:    cfg.ParakeetModelPath,
	})

	llmLister := healthLLMLister(cfg)
	srv := api.NewServer(registry, cfg.AuthToken, llmLister)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Handler(),
	}

	// 3. Serve until interrupted.
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("sessionengine listening on %s (mode=%s)", cfg.Addr(), cfg.Mode)
		serveErr <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
		shutdown(httpServer, registry)
	}
}

// shutdown marks every active session failed and best-effort persists
// any completed MAP summaries (no full stop sequence, no REDUCE/LLM
// calls), then closes the HTTP listener.
func shutdown(httpServer *http.Server, registry *sessionengine.Registry) {
	for _, s := range registry.ActiveSessions() {
		s.MarkFailedForShutdown()
		if err := s.Close(); err != nil {
			applog.Error(s.ID(), "shutdown_close_failed", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

// healthLLMLister builds the GET /health model-discovery callback
// using a throwaway Summarizer bound to no session, purely to call
// ListModels against the configured Ollama runtime.
func healthLLMLister(cfg *config.Config) func() []string {
	throttle := summarize.NewThrottle(1)
	s, err := summarize.New("health", cfg.OllamaURL, "", summarize.PromptTemplates{}, throttle)
	if err != nil {
		return nil
	}
	return func() []string {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.ListModels(ctx)
	}
}
