package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	openaiadapter "github.com/berrihq/berri-api/internal/adapter/openai"
	"github.com/berrihq/berri-api/internal/adapter/websearch"
	"github.com/berrihq/berri-api/internal/extract"
	"github.com/berrihq/berri-api/internal/handler"
	"github.com/berrihq/berri-api/internal/middleware"
	"github.com/berrihq/berri-api/internal/models"
	"github.com/berrihq/berri-api/internal/repository"
	"github.com/berrihq/berri-api/internal/service"
	"github.com/berrihq/berri-api/pkg/cache"
	"github.com/berrihq/berri-api/pkg/config"
	"github.com/berrihq/berri-api/pkg/database"
	"github.com/berrihq/berri-api/pkg/jobs"
	"github.com/berrihq/berri-api/pkg/logger"
	corsmiddleware "github.com/berrihq/berri-api/pkg/middleware/cors"
	reqidmiddleware "github.com/berrihq/berri-api/pkg/middleware/requestid"
	"github.com/berrihq/berri-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	blobs, err := storage.NewLocalStorage(cfg.Storage.DocumentsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}

	embedder := openaiadapter.NewEmbeddingClient(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbedTimeout)
	chatClient := openaiadapter.NewChatClient(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel)
	external := websearch.NewClient(cfg.External, redisClient)

	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	redactionRepo := repository.NewRedactionRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)

	authSvc := service.NewAuthService(cfg.JWT.Secret, userRepo, teamRepo, cfg.JWT.Expiration, logr)
	permSvc := service.NewPermissionService(folderRepo, fileRepo, permRepo, service.NewRedisRoleCache(redisClient), logr)
	redactionSvc := service.NewRedactionService(redactionRepo, docRepo, permSvc, logr)
	chunker := service.NewChunker(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap, cfg.Pipeline.MinChunkSize)

	// The queue delegates to the pipeline service, which in turn enqueues
	// follow-up jobs; the closure breaks the construction cycle.
	var pipelineSvc *service.PipelineService
	queue := jobs.NewQueue("pipeline", func(ctx context.Context, job jobs.Job) error {
		return pipelineSvc.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Pipeline.WorkerConcurrency,
		MaxRetries: cfg.Pipeline.WorkerRetries,
		Logger:     logr,
	})
	pipelineSvc = service.NewPipelineService(
		docRepo, chunkRepo, fileRepo, blobs, redactionRepo, redactionSvc,
		extract.New(), embedder, permSvc, queue, chunker, logr,
	)

	searchSvc := service.NewSearchService(chunkRepo, embedder, queryLogRepo, logr,
		cfg.Search.DefaultLimit, cfg.Search.DefaultThreshold, cfg.Search.QueryLogEnabled)
	contextSvc := service.NewContextService(searchSvc, external, fileRepo, chatClient, logr)
	folderSvc := service.NewFolderService(folderRepo, permSvc, logr)
	fileSvc := service.NewFileService(fileRepo, blobs, permSvc, pipelineSvc, logr,
		cfg.Pipeline.MaxFileSizeBytes, cfg.Pipeline.AllowedMIMEs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	folderHandler := handler.NewFolderHandler(folderSvc)
	fileHandler := handler.NewFileHandler(fileSvc)
	folderPermHandler := handler.NewPermissionHandler(permSvc, models.ResourceFolder)
	filePermHandler := handler.NewPermissionHandler(permSvc, models.ResourceFile)
	redactionHandler := handler.NewRedactionHandler(redactionSvc)
	pipelineHandler := handler.NewPipelineHandler(pipelineSvc)
	searchHandler := handler.NewSearchHandler(searchSvc)
	chatHandler := handler.NewChatHandler(contextSvc)
	metricsHandler := handler.NewMetricsHandler()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	r.POST(cfg.APIPrefix+"/auth/login", authHandler.Login)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	folders := api.Group("/folders")
	{
		folders.POST("", folderHandler.Create)
		folders.GET("", folderHandler.List)
		folders.GET("/:id", folderHandler.Get)
		folders.PATCH("/:id/name", folderHandler.Rename)
		folders.POST("/:id/move", folderHandler.Move)
		folders.DELETE("/:id", folderHandler.Delete)
		folders.POST("/:id/restore", folderHandler.Restore)

		folders.GET("/:id/permissions", folderPermHandler.List)
		folders.GET("/:id/permissions/effective", folderPermHandler.EffectiveRole)
		folders.POST("/:id/permissions", folderPermHandler.Grant)
		folders.POST("/:id/permissions/deny", folderPermHandler.Deny)
		folders.DELETE("/:id/permissions", folderPermHandler.Revoke)
	}

	files := api.Group("/files")
	{
		files.POST("", fileHandler.Upload)
		files.GET("", fileHandler.List)
		files.GET("/:id", fileHandler.Get)
		files.GET("/:id/download", fileHandler.Download)
		files.PATCH("/:id/name", fileHandler.Rename)
		files.POST("/:id/move", fileHandler.Move)
		files.DELETE("/:id", fileHandler.Delete)
		files.POST("/:id/restore", fileHandler.Restore)

		files.GET("/:id/permissions", filePermHandler.List)
		files.GET("/:id/permissions/effective", filePermHandler.EffectiveRole)
		files.POST("/:id/permissions", filePermHandler.Grant)
		files.POST("/:id/permissions/deny", filePermHandler.Deny)
		files.DELETE("/:id/permissions", filePermHandler.Revoke)

		files.GET("/:id/redactions", redactionHandler.List)
		files.POST("/:id/redactions", redactionHandler.Add)
		files.DELETE("/:id/redactions/:redactionId", redactionHandler.Delete)
		files.GET("/:id/redactions/suggestions", redactionHandler.Suggest)
		files.GET("/:id/redactions/preview", redactionHandler.Preview)

		files.GET("/:id/processing", pipelineHandler.Status)
		files.POST("/:id/processing/extract", pipelineHandler.Extract)
		files.POST("/:id/processing/commit", pipelineHandler.Commit)
		files.POST("/:id/processing/index", pipelineHandler.Index)
		files.POST("/:id/processing/full", pipelineHandler.Full)
	}

	api.POST("/search", searchHandler.Search)
	api.GET("/search/logs", searchHandler.QueryLogs)
	api.POST("/chat", chatHandler.Ask)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
