// driver открывает реализацию storage.Storage по cfg.Storage.Driver.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/storage"
	"github.com/pribylovaa/video-share/internal/storage/memory"
	"github.com/pribylovaa/video-share/internal/storage/mongo"
	"github.com/pribylovaa/video-share/internal/storage/postgres"
)

// Open подключается к выбранному хранилищу. Для postgres при cfg.Postgres.Migrate
// применяются миграции.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	const op = "storage.driver.Open"

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		st, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: mongo: %w", op, err)
		}
		log.Info("mongo_connected")

		return st, nil

	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: postgres: %w", op, err)
		}
		log.Info("postgres_connected")

		if cfg.Postgres.Migrate {
			if err := st.Migrate(); err != nil {
				_ = st.Close(ctx)
				return nil, fmt.Errorf("%s: postgres migrate: %w", op, err)
			}
			log.Info("postgres_migrated")
		}

		return st, nil

	case config.DriverMemory:
		log.Warn("memory_storage_enabled", slog.String("reason", "data is lost on restart"))
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}
}
