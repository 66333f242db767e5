package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"user-hub/internal/config"
	"user-hub/internal/database"
	"user-hub/internal/database/migration"
	"user-hub/internal/database/migrations"
	dbpostgres "user-hub/internal/database/postgres"
	"user-hub/internal/delivery/http/handler"
	"user-hub/internal/delivery/http/middleware"
	"user-hub/internal/delivery/http/routes"
	"user-hub/internal/infrastructure/cache"
	"user-hub/internal/infrastructure/persistence/postgres"
	"user-hub/internal/notification"
	"user-hub/internal/pkg/jwt"
	"user-hub/internal/pkg/logger"
	"user-hub/internal/usecase"
	"user-hub/internal/usecase/admin"
	ucauth "user-hub/internal/usecase/auth"
	"user-hub/internal/usecase/profile"
	"user-hub/internal/usecase/status"
	"user-hub/internal/ws"

	"github.com/rs/zerolog"
)

// Container builds and owns the dependency graph. Close releases resources in
// reverse construction order.
type Container struct {
	Config config.Config
	Logger zerolog.Logger

	DB         database.DB
	Redis      *cache.Redis
	Dispatcher *notification.Dispatcher
	Hub        *ws.Hub

	Routes *routes.Registry
	AuthMW *middleware.AuthMiddleware

	backendCloser io.Closer
}

func NewContainer(cfg config.Config) (*Container, error) {
	log := logger.New(cfg.App.AppName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := (migration.Runner{FS: migrations.FS()}).Run(ctx, db.SQLDB()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisCache := cache.NewRedis(cfg.Redis, log)
	guard := cache.NewLoginGuard(redisCache, cfg.Lockout)

	backend, closer, err := buildNotificationBackend(cfg, log)
	if err != nil {
		_ = redisCache.Close()
		_ = db.Close()
		return nil, err
	}

	dispatcher := notification.NewDispatcher(backend, redisCache, log)
	dispatcher.Start()

	jwtSvc := jwt.NewHMACService(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiresIn,
		cfg.JWT.RefreshExpiresIn,
	)

	userRepo := postgres.NewUserRepository(db)

	authSvc := ucauth.NewService(userRepo, guard, dispatcher, cfg.App.BaseURL)
	authUC := usecase.NewAuthUsecase(authSvc, userRepo, jwtSvc)
	profileSvc := profile.NewService(userRepo, dispatcher, cfg.App.BaseURL)
	statusSvc := status.NewService(userRepo, dispatcher, cfg.App.BaseURL)
	adminSvc := admin.NewService(userRepo)

	hub := ws.NewHub(log)
	go hub.Run()
	ws.SetDefaultHub(hub)

	authMW := middleware.NewAuthMiddleware(jwtSvc)

	registry := routes.NewRegistry(routes.Deps{
		Health: handler.NewHealthHandler(db),
		Auth:   handler.NewAuthHandler(authUC, authSvc),
		Users:  handler.NewUserHandler(profileSvc),
		Admin:  handler.NewAdminUserHandler(adminSvc, profileSvc, statusSvc),
		WS:     ws.NewHandler(hub, log),
		AuthMW: authMW,
	})

	return &Container{
		Config:        cfg,
		Logger:        log,
		DB:            db,
		Redis:         redisCache,
		Dispatcher:    dispatcher,
		Hub:           hub,
		Routes:        registry,
		AuthMW:        authMW,
		backendCloser: closer,
	}, nil
}

// buildNotificationBackend prefers the broker, then direct SMTP, then the
// log fallback so local development needs no mail infrastructure.
func buildNotificationBackend(cfg config.Config, log zerolog.Logger) (notification.Backend, io.Closer, error) {
	if cfg.AMQP.URL != "" {
		b, err := notification.NewAMQPBackend(cfg.AMQP)
		if err != nil {
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		return b, b, nil
	}

	if cfg.SMTP.Host != "" {
		b, err := notification.NewSMTPBackend(cfg.SMTP)
		if err != nil {
			return nil, nil, fmt.Errorf("configure smtp: %w", err)
		}
		return b, nil, nil
	}

	log.Warn().Msg("no notification backend configured, emails will only be logged")
	return notification.LogBackend{Logger: log}, nil, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if c.Dispatcher != nil {
		if err := c.Dispatcher.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.backendCloser != nil {
		if err := c.backendCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
