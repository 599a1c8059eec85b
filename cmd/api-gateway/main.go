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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/research-library-api/internal/handler"
	"github.com/noah-isme/research-library-api/internal/repository"
	"github.com/noah-isme/research-library-api/internal/service"
	"github.com/noah-isme/research-library-api/migrations"
	"github.com/noah-isme/research-library-api/pkg/cache"
	"github.com/noah-isme/research-library-api/pkg/config"
	"github.com/noah-isme/research-library-api/pkg/database"
	"github.com/noah-isme/research-library-api/pkg/jobs"
	"github.com/noah-isme/research-library-api/pkg/logger"
	"github.com/noah-isme/research-library-api/pkg/password"
	"github.com/noah-isme/research-library-api/pkg/storage"
)

// @title Research Library API
// @version 1.0.0
// @description School research paper repository with an authenticated admin console.
// @BasePath /api
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, migrations.FS); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	files, err := newFileStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	app := wire(cfg, logr, db, redisClient, files)

	auditQueue := jobs.NewQueue("activity-log", app.audit.Handle, jobs.QueueConfig{
		Workers:    cfg.ActivityLog.Workers,
		MaxRetries: cfg.ActivityLog.Retries,
		OnFailure:  app.audit.Dropped,
		Logger:     logr,
	})
	auditQueue.Start(ctx)
	defer auditQueue.Stop()
	app.audit.UseQueue(auditQueue)

	if _, err := app.auth.SeedAdmin(ctx, cfg.Login.DefaultAdminPW); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		runMaintenance(groupCtx, cfg.ActivityLog.PurgeInterval, app, logr)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

type application struct {
	metrics     *service.MetricsService
	sessions    *service.SessionService
	audit       *service.AuditService
	throttle    *service.LoginThrottle
	auth        *service.AuthService
	users       *service.UserService
	strands     *service.StrandService
	papers      *service.PaperService
	activityLog *service.ActivityLogService
	stats       *service.StatsService
	checks      map[string]handler.ReadinessCheck
}

func wire(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, files storage.FileStore) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()
	hasher := password.NewHasher(cfg.Security.BcryptCost, cfg.Security.HashConcurrency)

	userRepo := repository.NewUserRepository(db)
	strandRepo := repository.NewStrandRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	attemptRepo := repository.NewLoginAttemptRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	sessionStore := repository.NewRedisSessionStore(redisClient, cfg.Session.KeyPrefix)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
	audit := service.NewAuditService(activityRepo, metrics, logr)
	sessions := service.NewSessionService(sessionStore, cfg.Session.IdleTimeout, metrics, logr)
	throttle := service.NewLoginThrottle(attemptRepo, service.ThrottleConfig{
		MaxAttempts:   cfg.Login.MaxAttempts,
		LockoutWindow: cfg.Login.LockoutWindow,
		GracePeriod:   cfg.Login.GracePeriod,
	}, metrics, logr)

	return &application{
		metrics:     metrics,
		sessions:    sessions,
		audit:       audit,
		throttle:    throttle,
		auth:        service.NewAuthService(userRepo, throttle, sessions, audit, hasher, validate, logr),
		users:       service.NewUserService(userRepo, sessions, audit, hasher, validate, logr),
		strands:     service.NewStrandService(strandRepo, paperRepo, audit, cacheSvc, validate, logr),
		papers:      service.NewPaperService(paperRepo, strandRepo, files, audit, cacheSvc, cfg.Papers.MaxFileSizeBytes, validate, logr),
		activityLog: service.NewActivityLogService(activityRepo, audit, cfg.ActivityLog.Retention, logr),
		stats:       service.NewStatsService(statsRepo, cacheSvc, metrics, cfg.Stats.Since, cfg.Stats.CacheTTL, logr),
		checks: map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	if cfg.Driver == config.StorageDriverS3 {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:         cfg.S3Bucket,
			Region:         cfg.S3Region,
			AccessKeyID:    cfg.S3AccessKeyID,
			SecretKey:      cfg.S3SecretKey,
			Endpoint:       cfg.S3Endpoint,
			ForcePathStyle: cfg.S3ForcePath,
			UploadTimeout:  cfg.UploadTimeout,
		}, nil)
	}
	return storage.NewLocalStorage(cfg.Dir)
}

// runMaintenance enforces activity log retention and clears stale login attempts.
func runMaintenance(ctx context.Context, interval time.Duration, app *application, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := app.activityLog.Purge(ctx); err != nil {
			logr.Warn("activity log purge failed", zap.Error(err))
		}
		if removed, err := app.throttle.PurgeStale(ctx); err != nil {
			logr.Warn("login attempt purge failed", zap.Error(err))
		} else if removed > 0 {
			logr.Info("purged stale login attempts", zap.Int64("removed", removed))
		}
		if _, err := app.sessions.ListActiveUserIDs(ctx); err != nil {
			logr.Warn("session scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
