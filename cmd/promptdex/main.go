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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/backend/memvec"
	"github.com/reach-cloud/promptdex/internal/backend/redisvec"
	"github.com/reach-cloud/promptdex/internal/backend/sqlitevec"
	"github.com/reach-cloud/promptdex/internal/config"
	"github.com/reach-cloud/promptdex/internal/domain"
	logpkg "github.com/reach-cloud/promptdex/internal/logger"
	"github.com/reach-cloud/promptdex/internal/metrics"
	"github.com/reach-cloud/promptdex/internal/repository/embcache"
	"github.com/reach-cloud/promptdex/internal/repository/querycache"
	chiTransport "github.com/reach-cloud/promptdex/internal/transport/chi"
	openaiEmb "github.com/reach-cloud/promptdex/internal/transport/openai"
	embeddinguc "github.com/reach-cloud/promptdex/internal/usecase/embedding"
	healthuc "github.com/reach-cloud/promptdex/internal/usecase/health"
	hybriduc "github.com/reach-cloud/promptdex/internal/usecase/hybrid"
	ingestuc "github.com/reach-cloud/promptdex/internal/usecase/ingest"
	usageuc "github.com/reach-cloud/promptdex/internal/usecase/usage"
	"github.com/reach-cloud/promptdex/internal/version"
)

// embedder bundles single and batch embedding, the shape the transport and
// ingest layers consume.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting promptdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_driver", cfg.Store.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterStoreMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Background context for init and the re-probe loop; canceled on shutdown.
	ctx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// Primary backend per driver; "memory" runs on the fallback alone.
	var primary backend.Backend
	switch cfg.Store.Driver {
	case "redis":
		rs := redisvec.New(redisvec.Config{
			Addrs:           cfg.Redis.Addrs,
			Username:        cfg.Redis.Username,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			Index:           cfg.Redis.Index,
			KeyPrefix:       cfg.Redis.KeyPrefix,
			Dim:             cfg.Store.Dim,
			HNSWM:           cfg.Redis.HNSWM,
			HNSWEFConstruct: cfg.Redis.HNSWEFConstruct,
		}, logger)
		defer rs.Close()
		primary = backend.Instrument(rs, metrics.BackendRequestsTotal, metrics.BackendRequestDuration)
	case "sqlite":
		ss := sqlitevec.New(cfg.SQLite.Path, logger)
		defer func() { _ = ss.Close() }()
		primary = backend.Instrument(ss, metrics.BackendRequestsTotal, metrics.BackendRequestDuration)
	case "memory":
		// fallback-only deployment
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Store.Driver))
	}

	fallback := backend.Instrument(
		memvec.New(cfg.Store.MaxHotDocs, logger),
		metrics.BackendRequestsTotal, metrics.BackendRequestDuration,
	)

	cache := querycache.New(
		cfg.Cache.MaxEntries,
		time.Duration(cfg.Cache.TTLMs)*time.Millisecond,
		metrics.QueryCacheEvents,
		logger,
	)

	store := hybriduc.New(primary, fallback, cache, logger).
		WithOpTimeout(time.Duration(cfg.Store.OpTimeoutMs) * time.Millisecond)

	if err := store.Init(ctx); err != nil {
		logger.Fatal("Store init interrupted", zap.Error(err))
	}
	if !store.Ready() {
		logger.Warn("No backend ready at startup, serving degraded until one recovers")
	}
	logger.Info("Hybrid store initialized",
		zap.String("active_backend", store.ActiveBackend()),
		zap.Bool("primary_active", store.PrimaryActive()),
	)

	if iv := time.Duration(cfg.Store.ReprobeIntervalMs) * time.Millisecond; iv > 0 {
		store.StartReprobe(ctx, iv)
	}

	// Build the embedder chain at the composition root.
	// An empty api_key disables embedding: text queries and vectorless
	// writes are rejected, seed files must carry precomputed vectors.
	var (
		baseEmb       *openaiEmb.Embedder
		budget        *embeddinguc.BudgetTracker
		queryEmbedder embedder
		docEmbedder   embedder
	)
	if cfg.Embedding.APIKey != "" {
		baseEmb = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Store.Dim,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})

		// Single BudgetTracker shared by both embedders and the usage report.
		if cfg.Embedding.Budget.DailyTokenLimit > 0 || cfg.Embedding.Budget.MonthlyTokenLimit > 0 {
			action := embeddinguc.BudgetActionWarn
			if cfg.Embedding.Budget.Action == "reject" {
				action = embeddinguc.BudgetActionReject
			}
			budget = embeddinguc.NewBudgetTracker(
				cfg.Embedding.Provider,
				cfg.Embedding.Budget.DailyTokenLimit,
				cfg.Embedding.Budget.MonthlyTokenLimit,
				action, logger,
			)
		}

		// Pass nil interface (not typed nil pointer!) if budget is not configured.
		// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
		var budgetChecker embeddinguc.BudgetChecker
		if budget != nil {
			budgetChecker = budget
		}

		// One bounded text → vector cache shared by both roles; the
		// instruction prefix is applied outermost, so it is part of the
		// cached key and query/document vectors never collide.
		var inner domain.Embedder = baseEmb
		if cfg.Embedding.CacheEntries > 0 {
			inner = embcache.New(baseEmb, cfg.Embedding.CacheEntries, metrics.EmbeddingCacheTotal, logger)
		}
		instrumented := embeddinguc.NewInstrumentedEmbedder(
			inner, cfg.Embedding.Provider, cfg.Embedding.Model, budgetChecker, logger,
		)
		queryEmbedder = withInstruction(instrumented, cfg.Embedding.QueryInstruction)
		docEmbedder = withInstruction(instrumented, cfg.Embedding.DocumentInstruction)

		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Store.Dim),
		)
	} else {
		logger.Warn("No embedding api_key configured, text queries are disabled")
	}

	// Boot ingest. A broken seed file must not take the service down.
	var ing *ingestuc.Service
	if cfg.Ingest.SeedFile != "" {
		ing = ingestuc.New(store, docEmbedder, logger).WithBatchSize(cfg.Ingest.BatchSize)
		res, err := ing.Run(ctx, cfg.Ingest.SeedFile)
		if err != nil {
			logger.Error("Seed ingest failed, continuing with current store contents",
				zap.String("seed_file", cfg.Ingest.SeedFile), zap.Error(err))
		} else {
			logger.Info("Seed ingest finished",
				zap.Int("total", res.Total),
				zap.Int("written", res.Written),
				zap.Int("embedded", res.Embedded),
				zap.Int("skipped", res.Skipped),
				zap.Duration("duration", res.Duration),
			)
		}
	}

	// Usage service reads from the shared BudgetTracker.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Provider, cfg.Embedding.Model)

	// Health service probes the store and the raw provider client.
	var embChecker healthuc.EmbeddingChecker
	if baseEmb != nil {
		embChecker = baseEmb
	}
	healthSvc := healthuc.New(store, embChecker)

	server := chiTransport.NewServer(store, healthSvc, logger).WithUsage(usageSvc)
	if queryEmbedder != nil {
		server.WithEmbedder(queryEmbedder)
	}
	if docEmbedder != nil {
		server.WithDocumentEmbedder(docEmbedder)
	}
	if ing != nil {
		server.WithIngest(ing, cfg.Ingest.SeedFile)
	}

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
	cancelBg()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// withInstruction wraps e with an instruction prefix when one is configured.
func withInstruction(e embedder, instruction string) embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
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
