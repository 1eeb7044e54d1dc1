package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/config"
	"github.com/kailas-cloud/deskpilot/internal/db"
	dbRedis "github.com/kailas-cloud/deskpilot/internal/db/redis"
	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/index"
	"github.com/kailas-cloud/deskpilot/internal/kb"
	logpkg "github.com/kailas-cloud/deskpilot/internal/logger"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
	artifactrepo "github.com/kailas-cloud/deskpilot/internal/repository/artifact"
	"github.com/kailas-cloud/deskpilot/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/deskpilot/internal/transport/chi"
	openaiProv "github.com/kailas-cloud/deskpilot/internal/transport/openai"
	answeruc "github.com/kailas-cloud/deskpilot/internal/usecase/answer"
	eligibilityuc "github.com/kailas-cloud/deskpilot/internal/usecase/eligibility"
	generationuc "github.com/kailas-cloud/deskpilot/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/deskpilot/internal/usecase/health"
	indexeruc "github.com/kailas-cloud/deskpilot/internal/usecase/indexer"
	promptuc "github.com/kailas-cloud/deskpilot/internal/usecase/prompt"
	retrievaluc "github.com/kailas-cloud/deskpilot/internal/usecase/retrieval"
	scopeuc "github.com/kailas-cloud/deskpilot/internal/usecase/scope"
	"github.com/kailas-cloud/deskpilot/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting deskpilot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("documents_path", cfg.Knowledge.DocumentsPath),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	ctx := context.Background()

	// Optional redis-backed cache. Without it the service runs with
	// in-process caches only.
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to cache store")
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	// Embedder, optionally wrapped with the cache decorator
	var embedder domain.Embedder = openaiProv.NewEmbedder(&openaiProv.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	if store != nil {
		embedder = embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Generation provider behind the orchestrator
	generator := openaiProv.NewGenerator(&openaiProv.GeneratorConfig{
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.BaseURL,
		Model:    cfg.Generation.Model,
		Provider: "openai",
		Logger:   logger,
	})
	genSvc := generationuc.New(
		generator,
		time.Duration(cfg.Generation.TimeoutSec)*time.Second,
		time.Duration(cfg.Generation.AcquireTimeoutMs)*time.Millisecond,
		cfg.Generation.MaxConcurrent,
		logger,
	)

	// Knowledge base and index
	docs := kb.NewStore(cfg.Knowledge.DocumentsPath)
	idx := index.New()
	indexerSvc := indexeruc.New(docs, embedder, idx, cfg.Knowledge.IndexDir, logger)

	// A broken document store at startup is a hard failure; everything
	// provider-side degrades at request time instead.
	if _, err := indexerSvc.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap index", zap.Error(err))
	}

	// Use case services
	retrievalSvc := retrievaluc.New(embedder, idx, retrievaluc.Config{
		SimilarityFloor: cfg.Retrieval.SimilarityFloor,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
	}, logger)

	scopeSvc := scopeuc.New(genSvc, scopeuc.Config{
		Temperature: cfg.Generation.ExtractTemperature,
	}, logger)

	assembler := promptuc.New(promptuc.Config{
		MaxHistoryTurns:  cfg.Prompt.MaxHistoryTurns,
		MaxAccountItems:  cfg.Prompt.MaxAccountItems,
		PassageCharLimit: cfg.Prompt.PassageCharLimit,
		CharBudget:       cfg.Prompt.PromptCharBudget,
	})

	artifactTTL := time.Duration(cfg.Cache.ArtifactTTLHours) * time.Hour
	var artifacts answeruc.ArtifactStore
	if store != nil {
		artifacts = artifactrepo.New(store, artifactTTL, logger)
	} else {
		artifacts = artifactrepo.NewMemory(artifactTTL)
	}

	answerSvc := answeruc.New(scopeSvc, retrievalSvc, assembler, genSvc, artifacts, answeruc.Config{
		TopK:               cfg.Retrieval.TopK,
		RefusalConfidence:  cfg.Scope.RefusalConfidence,
		QueryRuneLimit:     cfg.Prompt.QueryRuneLimit,
		MaxAnswerTokens:    cfg.Prompt.MaxAnswerTokens,
		MaxExtractTokens:   cfg.Prompt.MaxExtractTokens,
		DraftTemperature:   cfg.Generation.DraftTemperature,
		ExtractTemperature: cfg.Generation.ExtractTemperature,
	}, logger)

	eligibilitySvc := eligibilityuc.New(retrievalSvc, genSvc, eligibilityuc.Config{
		WarnAfterDays: cfg.Eligibility.WarnAfterDays,
		DenyAfterDays: cfg.Eligibility.DenyAfterDays,
		TopK:          cfg.Retrieval.TopK,
		MaxTokens:     cfg.Prompt.MaxExtractTokens,
		Temperature:   cfg.Generation.ExtractTemperature,
	}, logger)

	// Pass nil interface (not typed nil pointer!) when no store is configured.
	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, embedderHealthChecker{embedder}, generator, idx)

	// HTTP server
	server := chiTransport.NewServer(answerSvc, eligibilitySvc, indexerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embedderHealthChecker adapts domain.Embedder to health.ProviderChecker:
// decorators in the chain may or may not expose a health check.
type embedderHealthChecker struct {
	embedder domain.Embedder
}

func (h embedderHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}
