// Package app composes the HTTP service with fx.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"outreach/internal/audit"
	"outreach/internal/auth"
	"outreach/internal/config"
	"outreach/internal/database"
	"outreach/internal/handlers"
	"outreach/internal/logging"
	"outreach/internal/service"
)

// Options returns the fx options for the service, including its logger.
func Options(cfg config.Config) fx.Option {
	return fx.Options(
		Module(cfg),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)
}

// Module returns the fx module for the service, composing all providers
// and lifecycle hooks.
func Module(cfg config.Config) fx.Option {
	return fx.Module("outreach",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideDB,
			provideAudit,
			provideVerifier,
			provideExportService,
			provideMergeService,
			service.NewAudienceService,
			service.NewConversationService,
			provideHandlers,
			handlers.NewRouter,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return closeLog() },
	})
	return logger, nil
}

// OpenDB opens and migrates the configured database.
func OpenDB(cfg config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("database initialized", zap.String("driver", db.Driver))
	return db, nil
}

func provideDB(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := OpenDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db, nil
}

// NewAuditLogger builds the configured audit sink.
func NewAuditLogger(cfg config.AuditConfig, logger *zap.Logger) (audit.Logger, error) {
	switch cfg.Sink {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return audit.NewRedisLogger(redis.NewClient(opts), cfg.RedisKey, logger), nil
	case "none":
		return audit.Nop{}, nil
	default:
		return audit.NewZapLogger(logger), nil
	}
}

func provideAudit(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (audit.Logger, error) {
	l, err := NewAuditLogger(cfg.Audit, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return l.Close() },
	})
	return l, nil
}

func provideVerifier(cfg config.Config, logger *zap.Logger) *auth.Verifier {
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty; every bearer token will fail verification")
	}
	return auth.NewVerifier(cfg.Auth.JWTSecret)
}

func provideExportService(db *database.DB, cfg config.Config, logger *zap.Logger) *service.ExportService {
	return service.NewExportService(db, cfg.Export.PageSize, logger)
}

func provideMergeService(db *database.DB, cfg config.Config, logger *zap.Logger) *service.MergeService {
	return service.NewMergeService(db, service.MergeOptions{
		Concurrency: cfg.Merge.Concurrency,
		BatchSize:   cfg.Merge.BatchSize,
	}, logger)
}

func provideHandlers(
	cfg config.Config,
	exportSvc *service.ExportService,
	mergeSvc *service.MergeService,
	audienceSvc *service.AudienceService,
	conversationSvc *service.ConversationService,
	auditLog audit.Logger,
	logger *zap.Logger,
) handlers.Handlers {
	return handlers.Handlers{
		Export:       handlers.NewExportHandler(exportSvc, auditLog, logger, cfg.Export.WriteTimeout.Duration),
		Merge:        handlers.NewMergeHandler(mergeSvc, auditLog, logger),
		Audience:     handlers.NewAudienceHandler(audienceSvc, logger),
		Conversation: handlers.NewConversationHandler(conversationSvc, auditLog, logger),
	}
}

func provideServer(cfg config.Config, router *mux.Router) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *http.Server, shutdowner fx.Shutdowner, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("server starting", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}
