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

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/vigilance-tracker-api/api/swagger"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/internal/service"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	"github.com/noah-isme/vigilance-tracker-api/pkg/cache"
	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
	"github.com/noah-isme/vigilance-tracker-api/pkg/database"
	"github.com/noah-isme/vigilance-tracker-api/pkg/export"
	"github.com/noah-isme/vigilance-tracker-api/pkg/jobs"
	"github.com/noah-isme/vigilance-tracker-api/pkg/logger"
	"github.com/noah-isme/vigilance-tracker-api/pkg/storage"
)

// @title Vigilance Petition Tracker API
// @version 1.0.0
// @description Petition intake, workflow transitions, dashboards and register exports
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
	logr.Info("server stopped")
}

// app holds the wired components the router and the background workers share.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	metrics *service.MetricsService

	auth       *service.AuthService
	users      *service.UserService
	userRepo   *repository.UserRepository
	petitions  *service.PetitionService
	workflow   *service.WorkflowService
	sla        *service.SLAService
	files      *service.FileService
	fieldRules *service.FieldRuleService
	dashboard  *service.DashboardService
	reports    *service.ReportService
	queue      *jobs.Queue
	relay      *service.OutboxRelay
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis, 5*time.Second); err != nil {
		logr.Warn("redis unavailable, running without dashboard cache and outbox relay", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	a, err := wire(cfg, logr, db, redisClient)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.queue != nil {
		a.queue.Start(gctx)
		a.reports.RecoverPendingJobs(gctx)
		a.reports.StartCleanup(gctx)
	}
	if a.relay != nil {
		g.Go(func() error {
			a.relay.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if a.queue != nil {
			a.queue.Stop()
		}
		return err
	})
	return g.Wait()
}

func wire(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	petitionRepo := repository.NewPetitionRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	reportRepo := repository.NewEnquiryReportRepository(db)
	userRepo := repository.NewUserRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	jobRepo := repository.NewReportRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logger.Component(logr, "cache"))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logger.Component(logr, "cache"), redisClient != nil)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	files := service.NewFileService(uploads, storage.NewSignedURLSigner(cfg.Uploads.TokenSecret, cfg.Uploads.TokenTTL), cfg.Uploads.MaxFileSizeBytes, logger.Component(logr, "files"))

	fieldRules := service.NewFieldRuleService(configRepo, userRepo, validate, logger.Component(logr, "field_rules"), cfg.Workflow.FieldRuleCacheTTL)
	engine := workflow.NewEngine(
		service.NewRoleDirectory(userRepo),
		workflow.WithFieldRules(fieldRules),
		workflow.WithFileVerifier(files),
		workflow.WithCloseAfterRejection(cfg.Workflow.CloseAfterRejection),
	)
	runner := service.NewWorkflowService(petitionRepo, engine, cacheSvc, metrics, logger.Component(logr, "workflow"))
	petitions := service.NewPetitionService(petitionRepo, trackingRepo, reportRepo, runner, files, validate, service.PetitionServiceConfig{
		SerialProgram: cfg.Workflow.SerialProgram,
		AutoRoute:     cfg.Workflow.AutoRoute,
	}, logger.Component(logr, "petitions"))
	sla := service.NewSLAService(trackingRepo)

	auth := service.NewAuthService(userRepo, petitionRepo, validate, logger.Component(logr, "auth"), service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Petitions: petitionRepo,
		Approvals: trackingRepo,
		SLA:       sla,
		Cache:     cacheSvc,
		Logger:    logger.Component(logr, "dashboard"),
		Config: service.DashboardServiceConfig{
			CacheTTL:       cfg.Dashboard.CacheTTL,
			DrilldownLimit: cfg.Dashboard.DrilldownLimit,
		},
	})

	a := &app{
		cfg:        cfg,
		logger:     logr,
		db:         db,
		metrics:    metrics,
		auth:       auth,
		users:      service.NewUserService(userRepo, validate, logger.Component(logr, "users")),
		userRepo:   userRepo,
		petitions:  petitions,
		workflow:   runner,
		sla:        sla,
		files:      files,
		fieldRules: fieldRules,
		dashboard:  dashboard,
	}

	if cfg.Reports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("init report storage: %w", err)
		}
		exporter := service.NewExportService(petitionRepo, sla, exportStore,
			storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
			logger.Component(logr, "export"), export.NewCSVExporter(true), export.NewPDFExporter())
		worker := service.NewReportWorker(jobRepo, exporter, metrics, cfg.Reports.WorkerRetries, logger.Component(logr, "report_worker"))
		a.queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			JobTimeout: 5 * time.Minute,
			Logger:     logger.Component(logr, "queue"),
		})
		a.reports = service.NewReportService(jobRepo, a.queue, exporter, validate, metrics, logger.Component(logr, "reports"), service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
	}

	if cfg.Outbox.Enabled && redisClient != nil {
		a.relay = service.NewOutboxRelay(repository.NewOutboxRepository(db), repository.NewCacheRepository(redisClient, logger.Component(logr, "outbox")), metrics, logger.Component(logr, "outbox"), service.OutboxRelayConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			Channel:      cfg.Outbox.Channel,
			Retention:    7 * 24 * time.Hour,
		})
	}

	return a, nil
}
