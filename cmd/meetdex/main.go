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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/config"
	"github.com/kailas-cloud/meetdex/internal/db"
	dbRedis "github.com/kailas-cloud/meetdex/internal/db/redis"
	"github.com/kailas-cloud/meetdex/internal/domain"
	logpkg "github.com/kailas-cloud/meetdex/internal/logger"
	"github.com/kailas-cloud/meetdex/internal/metrics"
	"github.com/kailas-cloud/meetdex/internal/repository/embcache"
	"github.com/kailas-cloud/meetdex/internal/repository/indexstore"
	meetingrepo "github.com/kailas-cloud/meetdex/internal/repository/meeting"
	chiTransport "github.com/kailas-cloud/meetdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/meetdex/internal/transport/openai"
	"github.com/kailas-cloud/meetdex/internal/usecase/agentic"
	healthuc "github.com/kailas-cloud/meetdex/internal/usecase/health"
	"github.com/kailas-cloud/meetdex/internal/usecase/indexer"
	searchuc "github.com/kailas-cloud/meetdex/internal/usecase/search"
	"github.com/kailas-cloud/meetdex/internal/usecase/titlefirst"
	"github.com/kailas-cloud/meetdex/internal/version"
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

	logger.Info("Starting meetdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_dir", cfg.Storage.IndexDir),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	// Optional embedding cache. Empty addrs disables caching entirely.
	var kvStore db.KV
	if len(cfg.Cache.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		kvStore = store
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder := buildEmbedder(&cfg, kvStore, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	llm := openaiTransport.NewLLM(&openaiTransport.LLMConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Provider:    cfg.LLM.Provider,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	// Repositories
	meetings, err := meetingrepo.New(cfg.Storage.MeetingDBPath)
	if err != nil {
		logger.Fatal("Failed to open meeting database", zap.Error(err))
	}
	defer meetings.Close()

	store, err := indexstore.New(indexstore.Config{
		Dir:    cfg.Storage.IndexDir,
		DBPath: cfg.Storage.IndexDBPath,
		Dim:    cfg.Embedding.Dimensions,
	}, embedder, logger)
	if err != nil {
		logger.Fatal("Failed to open index store", zap.Error(err))
	}
	defer store.Close()

	// Indexing service and its background worker pool
	indexSvc := indexer.NewService(meetings, store, embedder, llm, cfg.Indexer.SentencesPerChunk, logger)
	worker, err := indexer.NewWorker(cfg.Indexer.Workers, indexSvc, logger)
	if err != nil {
		logger.Fatal("Failed to create indexer worker pool", zap.Error(err))
	}
	defer worker.Close()

	// Search strategies
	searchSvc := searchuc.NewService(store, logger)
	searchSvc.Register(titlefirst.New(embedder, store, meetings, llm, cfg.Search.TitleTopK, logger))
	searchSvc.Register(agentic.New(embedder, store, meetings, llm, cfg.Search.AgentMaxIterations, logger))
	if err := searchSvc.SetDefault(cfg.Search.DefaultStrategy); err != nil {
		logger.Fatal("Failed to set default strategy", zap.Error(err))
	}

	// Health service; cache check only when caching is on
	var cachePing healthuc.Pinger
	if kvStore != nil {
		cachePing = kvStore
	}
	strategyNames := make([]string, 0)
	for _, info := range searchSvc.Strategies() {
		strategyNames = append(strategyNames, info.Name)
	}
	healthSvc := healthuc.New(store, meetings, newEmbeddingHealthChecker(embedder), cachePing).
		WithStrategies(strategyNames, cfg.Search.DefaultStrategy)

	server := chiTransport.NewServer(searchSvc, healthSvc, worker, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.HTTP.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

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

// buildEmbedder assembles the embedder chain: OpenAI -> Cached (when a cache
// store is configured).
func buildEmbedder(cfg *config.Config, kvStore db.KV, logger *zap.Logger) batchEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		MaxRetries: cfg.Embedding.MaxRetries,
		RetryDelay: time.Duration(cfg.Embedding.RetryDelaySec) * time.Second,
		BatchSize:  cfg.Embedding.BatchSize,
		Logger:     logger,
	})
	if kvStore == nil {
		return base
	}
	return embcache.New(base, kvStore, metrics.EmbeddingCacheTotal, logger)
}

// batchEmbedder is what the composition root wires everywhere an embedder
// is needed: single-text for query embedding, batch for indexing.
type batchEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// embeddingHealthChecker wraps an embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
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

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
