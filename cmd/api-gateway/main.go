package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/thesis-workflow-api/api/swagger"
	"github.com/noah-isme/thesis-workflow-api/internal/handler"
	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/realtime"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	"github.com/noah-isme/thesis-workflow-api/pkg/cache"
	"github.com/noah-isme/thesis-workflow-api/pkg/config"
	"github.com/noah-isme/thesis-workflow-api/pkg/database"
	"github.com/noah-isme/thesis-workflow-api/pkg/jobs"
	"github.com/noah-isme/thesis-workflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/thesis-workflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/thesis-workflow-api/pkg/middleware/requestid"
	"github.com/noah-isme/thesis-workflow-api/pkg/storage"
)

// @title Thesis Workflow API
// @version 1.0.0
// @description Topic proposal submission, staged review, and thesis creation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	docRepo := repository.NewDocumentRepository(db)
	eventRepo := repository.NewReviewEventRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Proposals.QueueCacheTTL, logr, true)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "thesis-workflow-api",
	})

	thesisSvc := service.NewThesisService(docRepo, logr)

	var broker *realtime.Broker
	if cfg.Realtime.Enabled {
		broker = realtime.NewBroker(redisClient, cfg.Realtime.ChannelPrefix, logr)
		broker.SetMetrics(metricsSvc)
	}

	proposalOpts := []service.ProposalServiceOption{
		service.WithThesisCreator(thesisSvc),
		service.WithQueueCache(service.NewQueueCache(cacheSvc)),
	}
	if broker != nil {
		proposalOpts = append(proposalOpts, service.WithChangeNotifier(broker))
	}
	proposalSvc := service.NewProposalService(docRepo, eventRepo, userRepo,
		service.ProposalConfig{
			MaxEntriesPerSet: cfg.Proposals.MaxEntriesPerSet,
			MaxSetsPerGroup:  cfg.Proposals.MaxSetsPerGroup,
		}, logr, proposalOpts...)
	if broker != nil {
		broker.SetSource(proposalSvc)
	}

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportRepo, eventRepo, exportStore, signer, metricsSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			DownloadPath:    cfg.APIPrefix + "/reports/download",
		})
		reportQueue = jobs.NewQueue("reports", reportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.SetDispatcher(reportQueue)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	proposalHandler := handler.NewProposalHandler(proposalSvc, validate)
	thesisHandler := handler.NewThesisHandler(thesisSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	group := api.Group("/groups/:year/:department/:course/:groupId", middleware.JWT(authSvc))
	{
		proposals := group.Group("/proposals")
		proposals.GET("", proposalHandler.ListSets)
		proposals.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent, models.RoleAdviser), proposalHandler.CreateSet)
		proposals.GET("/:setId", proposalHandler.GetSet)
		proposals.POST("/:setId/entries", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent, models.RoleAdviser), proposalHandler.AddEntry)
		proposals.PUT("/:setId/entries/:entryId", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent, models.RoleAdviser), proposalHandler.UpdateEntry)
		proposals.DELETE("/:setId/entries/:entryId", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent, models.RoleAdviser), proposalHandler.RemoveEntry)
		proposals.POST("/:setId/submit", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent, models.RoleAdviser), proposalHandler.SubmitSet)
		proposals.POST("/:setId/entries/:entryId/decision", middleware.Reviewers(), proposalHandler.RecordDecision)
		proposals.POST("/:setId/entries/:entryId/thesis", middleware.RequireRoles(models.RoleAdmin, models.RoleAdviser, models.RoleStudent), proposalHandler.MarkAsThesis)

		theses := group.Group("/theses")
		theses.GET("", thesisHandler.List)
		theses.GET("/:thesisId", thesisHandler.Get)
	}

	reviews := api.Group("/reviews", middleware.JWT(authSvc), middleware.Reviewers())
	reviews.GET("/queue/:stage", proposalHandler.ReviewerQueue)
	reviews.GET("/history", proposalHandler.ReviewHistory)

	if broker != nil {
		streamHandler := handler.NewStreamHandler(broker, logr)
		group.GET("/proposals/stream", streamHandler.Group)
		reviews.GET("/queue/:stage/stream", streamHandler.Queue)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		reports := api.Group("/reports")
		reports.POST("/proposals", middleware.JWT(authSvc), middleware.Reviewers(),
			middleware.Audit(userRepo, "CREATE", "report"), reportHandler.Create)
		reports.GET("/proposals/:id", middleware.JWT(authSvc), reportHandler.Status)
		// Download auth lives in the signed token itself.
		reports.GET("/download/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
