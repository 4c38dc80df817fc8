// Package app assembles the ingest and read pipeline from a Config. It is
// shared by the server and the offline importer.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/claude/healthexport/internal/cache"
	"github.com/claude/healthexport/internal/config"
	"github.com/claude/healthexport/internal/dataset"
	"github.com/claude/healthexport/internal/events"
	"github.com/claude/healthexport/internal/ingest/export"
	"github.com/claude/healthexport/internal/storage"
)

// MigrationsDir is where the Postgres migrations live, relative to the
// working directory.
const MigrationsDir = "migrations"

// App holds the wired components.
type App struct {
	Store     storage.Store
	Cache     cache.Cache
	Publisher events.Publisher
	Writer    *dataset.Writer
	Reader    *dataset.Reader
	Provider  *export.Provider

	closers []func() error
	log     *slog.Logger
}

// Migrate applies the Postgres migrations. SQLite creates its schema on open.
func Migrate(cfg *config.Config) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return nil
	}
	return storage.RunMigrations(cfg.Database.DSN(), MigrationsDir)
}

// New connects the store, the optional Redis cache and the optional Kafka
// publisher, and builds the writer, reader and export provider on top.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{Cache: cache.Noop{}, Publisher: events.Noop{}, log: log}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := storage.NewPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting postgres: %w", err)
		}
		a.Store = db
		log.Info("database connected", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "name", cfg.Database.Name)
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		a.Store = db
		log.Info("database connected", "driver", cfg.Database.Driver, "path", cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	a.closers = append(a.closers, a.Store.Close)

	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, dataset cache disabled", "addr", cfg.Redis.Addr, "error", err)
			rc.Close()
		} else {
			a.Cache = cache.NewRedis(rc)
			a.closers = append(a.closers, rc.Close)
			log.Info("dataset cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
		log.Info("ingest events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	a.Writer = dataset.NewWriter(a.Store, a.Publisher, dataset.WriterConfig{
		ChunkSize:       cfg.Ingest.ChunkSize,
		MaxDocumentSize: cfg.Ingest.MaxDocumentBytes,
	}, log)
	a.Reader = dataset.NewReader(a.Store, a.Cache, cfg.Redis.TTL, log)
	a.Provider = export.NewProvider(a.Writer, log)
	return a, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
}
