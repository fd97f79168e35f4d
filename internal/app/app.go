// Package app assembles the long-lived clients shared by the server and the kiosk.
package app

import (
	"context"
	"fmt"
	"time"

	"alcyxob/physiotrack/internal/cache"
	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/config"
	"alcyxob/physiotrack/internal/repository"
	"alcyxob/physiotrack/internal/repository/memory"
	"alcyxob/physiotrack/internal/repository/mongo"
	"alcyxob/physiotrack/internal/repository/postgres"
	"alcyxob/physiotrack/internal/service"
	"alcyxob/physiotrack/internal/storage"

	"go.uber.org/zap"
)

// App owns every external client. Close releases them in reverse order of creation.
type App struct {
	Config      config.Config
	Log         *zap.Logger
	Catalog     *catalog.Catalog
	Store       repository.PatientRepository
	Coordinator *service.Coordinator
	Files       storage.FileStorage // nil when sheet export is disabled

	closers []func()
}

// New connects the configured record store and optional Redis cache and S3
// bucket. The background sync is not started.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Catalog: catalog.Default()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	var opts []service.CoordinatorOption
	if cfg.SnapshotCacheEnabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// The snapshot cache only speeds up cold starts.
			log.Warn("Snapshot cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			opts = append(opts, service.WithSnapshotCache(cache.NewRedisSnapshotCache(client, cfg.Redis.Key, cfg.Redis.TTL, log)))
			log.Info("Snapshot cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}
	a.Coordinator = service.NewCoordinator(store, log, opts...)

	if cfg.SheetExportEnabled() {
		files, err := storage.NewS3Storage(ctx, cfg.S3, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init sheet storage: %w", err)
		}
		a.Files = files
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.PatientRepository, error) {
	cfg, log := a.Config, a.Log
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				log.Error("Failed to disconnect MongoDB", zap.Error(err))
			}
		})
		go func() {
			idxCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			mongo.EnsurePatientIndexes(idxCtx, client.PatientCollection(), log)
		}()
		return mongo.NewMongoPatientRepository(client.Database(), cfg.Database.PollInterval, log), nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		log.Info("Connected to PostgreSQL")
		return postgres.NewPatientRepository(pool, log), nil

	case config.DriverMemory:
		log.Warn("Using the in-memory record store; data is lost on exit")
		return memory.NewPatientRepository(), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Close releases all clients. It is safe to call on a partially built App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
