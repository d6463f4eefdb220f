package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Open creates the store selected by cfg.Driver and scopes it under
// cfg.Namespace.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Driver {
	case config.StorageMemory:
		s = NewMemory()
	case config.StorageBolt, "":
		s, err = OpenBolt(cfg.Path, cfg.LockTimeout)
	case config.StorageSQLite:
		s, err = OpenSQLite(cfg.Path)
	case config.StorageRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s, err = OpenRedis(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened storage",
		zap.String("driver", string(cfg.Driver)),
		zap.String("path", cfg.Path),
		zap.String("namespace", cfg.Namespace),
	)
	return Namespace(s, cfg.Namespace), nil
}

// NewStore opens the configured store and closes it when the app stops.
func NewStore(lc fx.Lifecycle, cfg *config.StorageConfig) (Store, error) {
	s, err := Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// Module provides the storage dependencies
var Module = fx.Module("storage",
	fx.Provide(NewStore),
)
