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

	"github.com/kailas-cloud/ragpipe/internal/config"
	"github.com/kailas-cloud/ragpipe/internal/db"
	dbMemory "github.com/kailas-cloud/ragpipe/internal/db/memory"
	dbRedis "github.com/kailas-cloud/ragpipe/internal/db/redis"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/ragpipe/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/ragpipe/internal/transport/openai"
	contextoptuc "github.com/kailas-cloud/ragpipe/internal/usecase/contextopt"
	embeddinguc "github.com/kailas-cloud/ragpipe/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	qualityuc "github.com/kailas-cloud/ragpipe/internal/usecase/quality"
	raguc "github.com/kailas-cloud/ragpipe/internal/usecase/rag"
	searchuc "github.com/kailas-cloud/ragpipe/internal/usecase/search"
	vectorstoreuc "github.com/kailas-cloud/ragpipe/internal/usecase/vectorstore"
	"github.com/kailas-cloud/ragpipe/internal/version"
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

	logger.Info("Starting ragpipe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create the vector store backend based on driver
	var store db.Backend
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "memory":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create vector store backend", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Backend not ready", zap.Error(err))
	}
	if err := store.EnsureCollection(ctx, cfg.Pipeline.Collection, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}
	logger.Info("Connected to backend")

	// Register metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	// Build embedder chain: provider -> cache -> retry -> fallback
	embedder, healthChecker := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("fallback", cfg.Embedding.UseFallback),
	)

	p := cfg.Pipeline

	vectorsSvc := vectorstoreuc.New(store, store, vectorstoreuc.Options{
		Dimension:           cfg.Embedding.Dimensions,
		EnableDeduplication: p.EnableDeduplication,
		EnableCompression:   p.EnableCompression,
		CompressionLevel:    p.CompressionLevel,
		Algorithm:           record.Algorithm(p.CompressionAlgorithm),
		DuplicateThreshold:  p.VectorDupThreshold,
		HotAccessThreshold:  p.HotAccessThreshold,
		ColdAfter:           time.Duration(p.ColdAfterDays) * 24 * time.Hour,
	}, logger)

	searchSvc := searchuc.New(store, embedder, vectorsSvc, searchuc.Options{
		Collection:    p.Collection,
		DefaultTopK:   p.MaxSources,
		CacheTTL:      time.Duration(p.CacheTTLSec) * time.Second,
		CacheMaxItems: p.CacheMaxEntries,
		MaxConcurrent: p.MaxConcurrentQueries,
		EnableCache:   p.EnableCache,
	}, logger)

	qualitySvc := qualityuc.New(qualityuc.Options{
		DuplicateThreshold:  p.ResultDupThreshold,
		MinQualityScore:     p.MinQualityScore,
		Strategy:            qualityuc.Strategy(p.RerankStrategy),
		EnableDeduplication: p.EnableDeduplication,
		EnableFiltering:     p.EnableQualityFilter,
		EnableReranking:     p.EnableReranking,
	}, logger)

	contextSvc := contextoptuc.New(contextoptuc.Options{
		MaxContextTokens:  p.MaxContextTokens,
		MaxChunkWords:     p.MaxChunkWords,
		OverlapWords:      p.ChunkOverlapWords,
		ChunkingStrategy:  domain.ChunkingStrategy(p.ChunkingStrategy),
		EnableCompression: p.EnableCompression,
		MemorySize:        p.MemorySize,
		IdleTimeout:       time.Duration(p.IdleTimeoutSec) * time.Second,
	}, logger)

	pipelineSvc := raguc.New(searchSvc, qualitySvc, contextSvc, raguc.Options{
		MaxSources:       p.MaxSources,
		QualityThreshold: p.QualityThreshold,
	}, logger)

	healthSvc := healthuc.New(store, healthChecker)

	// Background sweeps: response cache TTL, idle conversations, cold tiers
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	searchSvc.StartCacheSweep(sweepCtx)
	contextSvc.StartMemorySweep(sweepCtx)
	vectorsSvc.StartTierSweep(sweepCtx, p.Collection)

	// Create chi server
	server := chiTransport.NewServer(pipelineSvc, vectorsSvc, contextSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// buildEmbedder assembles the decorator chain. Without an API key the chain
// degrades to deterministic fallback vectors only, provided the fallback is
// enabled.
func buildEmbedder(cfg config.Config, store db.Backend, logger *zap.Logger) (domain.Embedder, healthuc.EmbeddingChecker) {
	var (
		embedder domain.Embedder
		checker  healthuc.EmbeddingChecker
	)

	if cfg.Embedding.APIKey != "" {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		checker = base

		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
		embedder = embeddinguc.NewRetryEmbedder(embedder, cfg.Embedding.MaxRetries, logger)
	}

	switch {
	case embedder != nil && cfg.Embedding.UseFallback:
		embedder = embeddinguc.NewFallbackEmbedder(embedder, cfg.Embedding.Dimensions, logger)
	case embedder == nil && cfg.Embedding.UseFallback:
		embedder = embeddinguc.NewFallbackEmbedder(failingEmbedder{}, cfg.Embedding.Dimensions, logger)
	case embedder == nil:
		logger.Fatal("No embedding provider configured and fallback disabled")
	}

	return embedder, checker
}

// failingEmbedder always errors; wrapped by the fallback it yields
// deterministic vectors for every query.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"no embedding provider configured: %w", domain.ErrEmbeddingProviderError)
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

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
