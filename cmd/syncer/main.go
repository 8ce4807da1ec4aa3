package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/libraryai/recommender/internal/config"
	dbRedis "github.com/libraryai/recommender/internal/db/redis"
	"github.com/libraryai/recommender/internal/domain"
	logpkg "github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
	bookrepo "github.com/libraryai/recommender/internal/repository/book"
	"github.com/libraryai/recommender/internal/repository/catalog"
	ollamaModel "github.com/libraryai/recommender/internal/transport/ollama"
	openaiModel "github.com/libraryai/recommender/internal/transport/openai"
	syncuc "github.com/libraryai/recommender/internal/usecase/sync"
	"github.com/libraryai/recommender/internal/version"
)

func main() {
	reindex := flag.Bool("reindex", false, "drop and recreate the vector index before syncing")
	flag.Parse()

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

	logger.Info("Starting catalog sync service",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("interval_sec", cfg.Sync.IntervalSec),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	metrics.RegisterModelMetrics()
	metrics.RegisterSyncMetrics()

	source, err := catalog.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to catalog database", zap.Error(err))
	}
	defer source.Close()
	logger.Info("Connected to catalog database")

	model := buildModelService(&cfg)

	books := bookrepo.New(store, cfg.Index.Dimensions).WithHNSW(bookrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if *reindex {
		logger.Info("Dropping vector index for rebuild")
		if err := books.ResetIndex(ctx); err != nil {
			logger.Fatal("Failed to reset vector index", zap.Error(err))
		}
	} else if err := books.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	service := syncuc.New(source, books, model)
	runner := syncuc.NewRunner(service, time.Duration(cfg.Sync.IntervalSec)*time.Second)

	runCtx := logpkg.ContextWithLogger(ctx, logger)
	if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync runner stopped", zap.Error(err))
	}

	logger.Info("Sync service stopped gracefully")
}

// buildModelService creates the configured model provider.
func buildModelService(cfg *config.Config) domain.ModelService {
	switch cfg.Model.Provider {
	case "openai":
		return openaiModel.NewClient(&openaiModel.Config{
			APIKey:        cfg.Model.OpenAI.APIKey,
			BaseURL:       cfg.Model.OpenAI.BaseURL,
			EmbedModel:    cfg.Model.OpenAI.EmbedModel,
			GenerateModel: cfg.Model.OpenAI.GenerateModel,
		})
	default:
		return ollamaModel.NewClient(&ollamaModel.Config{
			BaseURL:       fmt.Sprintf("http://%s:%s", cfg.Model.Ollama.Host, cfg.Model.Ollama.Port),
			EmbedModel:    cfg.Model.Ollama.EmbedModel,
			GenerateModel: cfg.Model.Ollama.GenerateModel,
			Timeout:       time.Duration(cfg.Model.Ollama.TimeoutSec) * time.Second,
		})
	}
}
