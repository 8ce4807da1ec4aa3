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

	"github.com/libraryai/recommender/internal/config"
	dbRedis "github.com/libraryai/recommender/internal/db/redis"
	"github.com/libraryai/recommender/internal/domain"
	logpkg "github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
	bookrepo "github.com/libraryai/recommender/internal/repository/book"
	chiTransport "github.com/libraryai/recommender/internal/transport/chi"
	ollamaModel "github.com/libraryai/recommender/internal/transport/ollama"
	openaiModel "github.com/libraryai/recommender/internal/transport/openai"
	healthuc "github.com/libraryai/recommender/internal/usecase/health"
	recommenduc "github.com/libraryai/recommender/internal/usecase/recommend"
	"github.com/libraryai/recommender/internal/version"
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

	logger.Info("Starting recommender API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("model_provider", cfg.Model.Provider),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the vector store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterModelMetrics()

	model, healthChecker := buildModelService(&cfg)
	logger.Info("Model service created", zap.String("provider", cfg.Model.Provider))

	books := bookrepo.New(store, cfg.Index.Dimensions).WithHNSW(bookrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := books.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	recommendSvc := recommenduc.New(model, books, recommenduc.Config{
		TopK:            cfg.Pipeline.TopK,
		SelectN:         cfg.Pipeline.SelectN,
		MinSelections:   cfg.Pipeline.MinSelections,
		SummaryMaxChars: cfg.Pipeline.SummaryMaxChars,
		ReasonMaxChars:  cfg.Pipeline.ReasonMaxChars,
		ExplainTimeout:  time.Duration(cfg.Pipeline.ExplainTimeoutSec) * time.Second,
	})
	healthSvc := healthuc.New(store, healthChecker)

	server := chiTransport.NewServer(recommendSvc, healthSvc, logger)

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

// buildModelService creates the configured model provider. The second return
// is the health probe for /health.
func buildModelService(cfg *config.Config) (domain.ModelService, domain.HealthChecker) {
	switch cfg.Model.Provider {
	case "openai":
		client := openaiModel.NewClient(&openaiModel.Config{
			APIKey:        cfg.Model.OpenAI.APIKey,
			BaseURL:       cfg.Model.OpenAI.BaseURL,
			EmbedModel:    cfg.Model.OpenAI.EmbedModel,
			GenerateModel: cfg.Model.OpenAI.GenerateModel,
		})
		return client, client
	default:
		client := ollamaModel.NewClient(&ollamaModel.Config{
			BaseURL:       fmt.Sprintf("http://%s:%s", cfg.Model.Ollama.Host, cfg.Model.Ollama.Port),
			EmbedModel:    cfg.Model.Ollama.EmbedModel,
			GenerateModel: cfg.Model.Ollama.GenerateModel,
			Timeout:       time.Duration(cfg.Model.Ollama.TimeoutSec) * time.Second,
		})
		return client, client
	}
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

			// Canonical log line — one line per request
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
