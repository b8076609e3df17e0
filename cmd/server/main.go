package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stebratori/jobBolt-backend/internal/analysis"
	"github.com/stebratori/jobBolt-backend/internal/api"
	"github.com/stebratori/jobBolt-backend/internal/config"
	"github.com/stebratori/jobBolt-backend/internal/events"
	"github.com/stebratori/jobBolt-backend/internal/observability"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/relay"
	"github.com/stebratori/jobBolt-backend/internal/session"
	"github.com/stebratori/jobBolt-backend/internal/storage"
	"github.com/stebratori/jobBolt-backend/internal/stt"
	"github.com/stebratori/jobBolt-backend/internal/stt/assemblyai"
	"github.com/stebratori/jobBolt-backend/internal/stt/google"
	"github.com/stebratori/jobBolt-backend/internal/stt/mock"
	"github.com/stebratori/jobBolt-backend/internal/task"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logging.Init(logging.Config{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.LogFormat,
		Principal: cfg.Service.Principal,
	})

	log.Info().
		Str("sttProvider", cfg.STT.Provider).
		Str("httpPort", cfg.Service.HTTPPort).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("Starting interview backend")

	factory, err := engineFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure speech engine")
	}

	publisher := events.New(&events.Config{
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicAnalysis:   cfg.Kafka.TopicAnalysis,
		Principal:       cfg.Kafka.Principal,
		Enabled:         cfg.Kafka.Enabled,
	})

	store, err := storage.NewDiskStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open interview store")
	}

	registry := session.NewRegistry(session.Config{
		StartupTimeout: cfg.STT.StartupTimeout,
		FrameQueueSize: cfg.STT.FrameQueueSize,
		IdleTimeout:    cfg.STT.IdleTimeout,
	}, factory, publisher)

	rly := relay.New(relay.Config{
		KeepaliveInterval: cfg.Relay.KeepaliveInterval,
		WriteTimeout:      cfg.Relay.WriteTimeout,
		MaxFrameBytes:     cfg.Relay.MaxFrameBytes,
	}, registry)

	invoker := analysis.NewOpenAIInvoker(analysis.InvokerConfig{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		MaxAttempts:    cfg.OpenAI.MaxAttempts,
		AttemptTimeout: cfg.OpenAI.AttemptTimeout,
		RetryBackoff:   cfg.OpenAI.RetryBackoff,
	})
	planner := analysis.NewPlanner(cfg.Budget.CharsPerToken, cfg.Budget.ContextWindow)
	pipeline := analysis.NewPipeline(planner, invoker, store, publisher)
	runner := task.NewRunner()

	handler := api.NewHandler(store, pipeline, runner)
	router := api.NewRouter(handler, rly)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.StartReaper(ctx)

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr)
	obsServer.Start()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cancel()
	registry.Shutdown()

	// Let in-flight analysis runs finish before closing their sinks.
	runner.Wait()

	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Kafka publisher close error")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Interview store close error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// engineFactory maps the configured provider to an engine constructor.
func engineFactory(cfg *config.Config) (stt.Factory, error) {
	sttCfg := stt.Config{
		APIKey:       cfg.STT.APIKey,
		SampleRateHz: cfg.STT.SampleRateHz,
		LanguageCode: cfg.STT.LanguageCode,
	}

	switch cfg.STT.Provider {
	case "assemblyai":
		if sttCfg.APIKey == "" {
			return nil, errors.New("ASSEMBLYAI_API_KEY is required for the assemblyai provider")
		}
		return func() (stt.Engine, error) {
			return assemblyai.New(sttCfg), nil
		}, nil
	case "google":
		return func() (stt.Engine, error) {
			return google.New(context.Background(), sttCfg)
		}, nil
	case "mock":
		return func() (stt.Engine, error) {
			return mock.New(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}
