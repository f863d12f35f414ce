package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/insurance-qa/internal/adapters/cache"
	embeddingadapter "github.com/zatekoja/insurance-qa/internal/adapters/providers/embedding"
	llmadapter "github.com/zatekoja/insurance-qa/internal/adapters/providers/llm"
	"github.com/zatekoja/insurance-qa/internal/adapters/search"
	"github.com/zatekoja/insurance-qa/internal/api/handlers"
	"github.com/zatekoja/insurance-qa/internal/api/routes"
	"github.com/zatekoja/insurance-qa/internal/application/services"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	redisclient "github.com/zatekoja/insurance-qa/internal/infrastructure/clients/redis"
	tsclient "github.com/zatekoja/insurance-qa/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/insurance-qa/internal/infrastructure/observability"
	"github.com/zatekoja/insurance-qa/pkg/config"
	"github.com/zatekoja/insurance-qa/pkg/normalize"
	"github.com/zatekoja/insurance-qa/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Vector store
	typesenseClient, err := tsclient.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Typesense client")
	}
	store := search.NewTypesenseAdapter(typesenseClient, cfg.Typesense.Collection, cfg.OpenAI.EmbeddingDimensions)
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure fragment collection")
	}

	// Answer cache
	var answerCache providers.AnswerCache
	if cfg.Cache.Backend == "redis" {
		redisClient, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Redis, falling back to memory cache")
			answerCache = cache.NewMemoryAdapter(cfg.Cache.Capacity, cfg.Cache.TTL())
		} else {
			defer redisClient.Close()
			answerCache = cache.NewRedisAdapter(redisClient, cfg.Cache.TTL())
			log.Info().Msg("Redis answer cache initialized")
		}
	} else {
		answerCache = cache.NewMemoryAdapter(cfg.Cache.Capacity, cfg.Cache.TTL())
	}

	// Rate-limited retry executor, one budget per provider
	executor := retry.NewExecutor(retry.DefaultConfig())
	executor.Configure("embedding", providerConfig(cfg, cfg.RateLimit.EmbeddingLimit))
	executor.Configure("retrieval", providerConfig(cfg, cfg.RateLimit.RetrievalLimit))
	executor.Configure("generation", providerConfig(cfg, cfg.RateLimit.GenerationLimit))

	// Embedding provider with deterministic fallback
	var embedder providers.EmbeddingProvider
	if cfg.OpenAI.EmbeddingEnabled && cfg.OpenAI.APIKey != "" {
		embedder, err = embeddingadapter.NewOpenAIAdapter(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("embedding provider misconfigured, running in fallback mode")
		}
	} else {
		log.Info().Msg("embedding provider disabled, running in fallback mode")
	}
	hashEmbedder := embeddingadapter.NewHashAdapter(cfg.OpenAI.EmbeddingDimensions)

	// Language model provider
	var llm providers.LLMProvider
	if cfg.OpenAI.GenerationEnabled && cfg.OpenAI.APIKey != "" {
		llm, err = llmadapter.NewOpenAIAdapter(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("generation provider misconfigured, running in fallback mode")
		}
	} else {
		log.Info().Msg("generation provider disabled, running in fallback mode")
	}

	// Services
	analytics := services.NewAnalyticsRecorder()
	normalizer := normalize.NewNormalizer(
		cfg.Pipeline.DefaultResultCount,
		cfg.Pipeline.MaxResultCount,
		cfg.Pipeline.DefaultSimilarityFloor,
		cfg.Pipeline.MaxQueryLength,
	)
	pipeline := services.NewPipelineService(
		normalizer,
		answerCache,
		services.NewEmbeddingService(embedder, hashEmbedder, executor, cfg.Pipeline.MaxEmbedInputChars),
		services.NewRetrievalService(store, executor),
		services.NewGenerationService(llm, executor, cfg.Pipeline.ContextCharBudget),
		analytics,
		cfg.Pipeline.Deadline(),
	)

	// HTTP surface
	router := routes.NewRouter(
		handlers.NewQueryHandler(pipeline, metrics),
		handlers.NewMetricsHandler(analytics, pipeline),
		metrics,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Pipeline.Deadline() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func providerConfig(cfg *config.Config, limit int) retry.Config {
	providerCfg := retry.DefaultConfig()
	providerCfg.WindowLimit = limit
	providerCfg.Window = cfg.RateLimit.Window()
	providerCfg.MaxWait = cfg.RateLimit.MaxWait()
	return providerCfg
}
