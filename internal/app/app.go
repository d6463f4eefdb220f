// Package app assembles the labportal components with fx.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/brizzai/labportal/internal/auth/providers"
	"github.com/brizzai/labportal/internal/backend"
	"github.com/brizzai/labportal/internal/canvas"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/session"
	"github.com/brizzai/labportal/internal/storage"
	"github.com/brizzai/labportal/internal/tracer"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const stopTimeout = 5 * time.Second

// Options returns the fx options for the whole application. Constructors
// run lazily, so commands that only touch local storage never contact the
// identity provider.
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger()}
		}),
		fx.Supply(cfg),
		fx.Provide(
			func(c *config.Config) *config.StorageConfig { return &c.Storage },
			func(c *config.Config) *config.ProviderConfig { return &c.Provider },
			func(c *config.Config) *config.BackendConfig { return &c.Backend },
			func(c *config.Config) *config.SessionConfig { return &c.Session },
			func(c *config.Config) *config.PollingConfig { return &c.Polling },
			func(c *config.Config) *config.TracingConfig { return &c.Tracing },
		),
		fx.Invoke(setupTracing),
		storage.Module,
		providers.Module,
		backend.Module,
		session.Module,
		canvas.Module,
	)
}

func setupTracing(lc fx.Lifecycle, cfg *config.TracingConfig) error {
	shutdown, err := tracer.Setup(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
	return nil
}

// Run builds the application, fills targets with their dependencies, calls
// fn and stops the application again. Targets are pointers, as for
// fx.Populate.
func Run(ctx context.Context, cfg *config.Config, fn func(ctx context.Context) error, targets ...interface{}) error {
	return RunWith(ctx, cfg, nil, fn, targets...)
}

// RunWith is Run with extra fx options, used to replace components.
func RunWith(ctx context.Context, cfg *config.Config, extra []fx.Option, fn func(ctx context.Context) error, targets ...interface{}) error {
	opts := []fx.Option{Options(cfg)}
	opts = append(opts, extra...)
	opts = append(opts, fx.Populate(targets...))

	a := fx.New(opts...)
	if err := a.Err(); err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			logger.Warn("Application did not stop cleanly", zap.Error(err))
		}
	}()

	return fn(ctx)
}
