package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/ai"
	"github.com/kalorin/webseek/internal/cache"
	"github.com/kalorin/webseek/internal/config"
	"github.com/kalorin/webseek/internal/db"
	"github.com/kalorin/webseek/internal/embedcache"
	"github.com/kalorin/webseek/internal/handler"
	"github.com/kalorin/webseek/internal/job"
	"github.com/kalorin/webseek/internal/middleware"
	"github.com/kalorin/webseek/internal/ranker"
	"github.com/kalorin/webseek/internal/repo"
	"github.com/kalorin/webseek/internal/schedule"
	"github.com/kalorin/webseek/internal/scraper"
	"github.com/kalorin/webseek/internal/search"
	"github.com/kalorin/webseek/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "webseek",
		Short: "webseek answer server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run webseek server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("cache_store", cfg.Cache.Store),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	var conn *sql.DB
	if cfg.Cache.Store == "postgres" {
		var err error
		conn, err = db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}

	var embedRepo *repo.EmbeddingCacheRepo
	embedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
	if conn != nil {
		embedRepo = repo.NewEmbeddingCacheRepo(conn)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder,
		cfg.Cache.Embedding.LRUSize,
		time.Duration(cfg.Cache.Embedding.LRUTTLSeconds)*time.Second,
	)

	var kvStore cache.KVStore
	var kvSweeper job.ExpirySweeper
	if conn != nil {
		kvRepo := repo.NewKVCacheRepo(conn)
		kvStore = kvRepo
		kvSweeper = kvRepo
	} else {
		memKV, err := cache.NewMemoryKV(cfg.Cache.MemorySize)
		if err != nil {
			return fmt.Errorf("init memory cache: %w", err)
		}
		kvStore = memKV
	}

	var semanticCache *cache.SemanticCache
	var semanticSweeper job.ExpirySweeper
	var semanticEvictor job.PartitionEvictor
	if cfg.Cache.Semantic.Enable {
		var index cache.SemanticIndex
		if conn != nil {
			semanticRepo := repo.NewSemanticCacheRepo(conn)
			index, err = cache.NewIndex(cfg.Cache.Semantic.Strategy, semanticRepo, cfg.Cache.Semantic.ScanLimit)
			if err != nil {
				return fmt.Errorf("init semantic index: %w", err)
			}
			semanticSweeper = semanticRepo
			semanticEvictor = semanticRepo
		} else {
			memIndex := cache.NewMemoryIndex(cfg.Cache.Semantic.ScanLimit)
			index = memIndex
			semanticSweeper = memIndex
			semanticEvictor = memIndex
		}
		semanticCache = cache.NewSemanticCache(embedder, index,
			cfg.Cache.Semantic.Threshold,
			time.Duration(cfg.Cache.Semantic.TTLSeconds)*time.Second,
		)
	}
	respCache := cache.NewResponseCache(kvStore, semanticCache,
		time.Duration(cfg.Cache.ResponseTTLSeconds)*time.Second)

	searchTimeout := time.Duration(cfg.Search.Timeout) * time.Second
	var providers []search.ISearcher
	if cfg.Search.BraveAPIKey != "" {
		providers = append(providers, search.NewBrave(cfg.Search.BraveAPIKey, searchTimeout))
	}
	if cfg.Search.SerpAPIKey != "" {
		providers = append(providers, search.NewSerpAPI(cfg.Search.SerpAPIKey, searchTimeout))
	}
	providers = append(providers, search.NewDuckDuckGo(searchTimeout))
	searcher := search.WrapCacheToSearcher(search.NewChain(providers...), kvStore,
		time.Duration(cfg.Cache.SearchTTLSeconds)*time.Second)

	pageScraper := scraper.WrapCacheToScraper(
		scraper.New(cfg.Scraper.MaxConcurrent, cfg.Scraper.MinContentLength,
			time.Duration(cfg.Scraper.Timeout)*time.Second),
		kvStore,
		time.Duration(cfg.Cache.ContentTTLSeconds)*time.Second,
	)

	answerService := service.NewAnswerService(
		searcher,
		pageScraper,
		ranker.New(embedder),
		aiProvider,
		respCache,
		service.Defaults{
			TargetDomain: cfg.Answer.TargetDomain,
			Model:        cfg.AI.Model,
			ChunkSize:    cfg.Answer.ChunkSize,
			ChunkOverlap: cfg.Answer.ChunkOverlap,
			MaxResults:   cfg.Answer.MaxResults,
			MaxChunks:    cfg.Answer.MaxChunks,
		},
		time.Duration(cfg.AI.Timeout)*time.Second,
	)

	deps := handler.RouterDeps{
		Answer: handler.NewAnswerHandler(answerService),
		Stats:  handler.NewStatsHandler(respCache),
	}

	extraMiddlewares := []gin.HandlerFunc{
		gzip.Gzip(gzip.DefaultCompression),
	}
	if cfg.RateLimitMS > 0 {
		extraMiddlewares = append(extraMiddlewares,
			middleware.RateLimit(time.Duration(cfg.RateLimitMS)*time.Millisecond))
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(extraMiddlewares...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewCacheCleanupJob(kvSweeper, semanticSweeper, semanticEvictor, cfg.Cache.Semantic.ScanLimit)
	if err := scheduler.AddJob(cleanup, "*/10 * * * *"); err != nil {
		return err
	}
	if embedRepo != nil {
		embedCleanup := job.NewEmbeddingCacheCleanupJob(embedRepo, cfg.Cache.Embedding.DBMaxAgeDays)
		if err := scheduler.AddJob(embedCleanup, "0 3 * * *"); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
