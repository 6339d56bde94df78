package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matt-dinh13/empulse-sub000/internal/config"
	s3infra "github.com/matt-dinh13/empulse-sub000/internal/infra/s3"
	tginfra "github.com/matt-dinh13/empulse-sub000/internal/infra/telegram"
	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
	redrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/redis"
	authsvc "github.com/matt-dinh13/empulse-sub000/internal/services/auth"
	exportsvc "github.com/matt-dinh13/empulse-sub000/internal/services/exports"
	ratesvc "github.com/matt-dinh13/empulse-sub000/internal/services/rate"
	settingssvc "github.com/matt-dinh13/empulse-sub000/internal/services/settings"
	votesvc "github.com/matt-dinh13/empulse-sub000/internal/services/votes"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	windowRepo := redrepo.NewWindowRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	walletRepo := pgrepo.NewWalletRepo(pool)
	voteRepo := pgrepo.NewVoteRepo(pool)
	trackingRepo := pgrepo.NewTrackingRepo(pool)
	settingRepo := pgrepo.NewSettingRepo(pool)
	notificationRepo := pgrepo.NewNotificationRepo(pool)
	auditRepo := pgrepo.NewAuditRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	settingsResolver := settingssvc.NewResolver(settingRepo)
	rateLimiter := ratesvc.NewLimiter(
		windowRepo,
		cfg.RateLimit.VotesPerMinute,
		cfg.RateLimit.VotesPer10Seconds,
	)

	var announcer votesvc.ChatAnnouncer
	if cfg.Chat.BotToken != "" {
		if a, err := tginfra.NewAnnouncer(cfg.Chat.BotToken, cfg.Chat.ChannelID); err != nil {
			log.Warn("chat announcer init failed, votes will not be announced", zap.Error(err))
		} else {
			announcer = a
		}
	}

	voteService := votesvc.NewService(votesvc.Dependencies{
		Pool:          pool,
		Users:         userRepo,
		Wallets:       walletRepo,
		Votes:         voteRepo,
		Tracking:      trackingRepo,
		Notifications: notificationRepo,
		Audit:         auditRepo,
		RateLimiter:   rateLimiter,
		Settings:      settingsResolver,
		Announcer:     announcer,
		Logger:        log,
	})

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	reportStorage := exportsvc.NewReportStorage(s3Client, cfg.S3.Bucket)
	exportService := exportsvc.NewService(exportsvc.Dependencies{
		Votes:   voteRepo,
		Storage: reportStorage,
		Audit:   auditRepo,
		Logger:  log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		VoteService:   voteService,
		ExportService: exportService,
		JWTManager:    jwtManager,
		Logger:        log,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
