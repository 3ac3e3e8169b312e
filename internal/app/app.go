// Package app wires the configured stores, the sync engine and the service
// together. Both the HTTP server and the salesctl CLI start from Build.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"mesapos/backend/internal/cache"
	"mesapos/backend/internal/config"
	"mesapos/backend/internal/connectivity"
	"mesapos/backend/internal/ledger"
	"mesapos/backend/internal/localstore"
	kvmemory "mesapos/backend/internal/localstore/memory"
	"mesapos/backend/internal/localstore/rediskv"
	"mesapos/backend/internal/localstore/sqlite"
	"mesapos/backend/internal/recommendation"
	"mesapos/backend/internal/service"
	"mesapos/backend/internal/store"
	remotememory "mesapos/backend/internal/store/memory"
	mongostore "mesapos/backend/internal/store/mongo"
	pgstore "mesapos/backend/internal/store/postgres"
	"mesapos/backend/internal/syncer"
)

const redisKeyPrefix = "mesapos:"

type Options struct {
	// Offline forces every connectivity check to report offline.
	Offline bool
}

type App struct {
	Ledger    *ledger.Ledger
	Remote    store.Remote
	Probe     connectivity.Probe
	Watcher   *connectivity.Watcher
	Engine    *syncer.Engine
	Scheduler *syncer.Scheduler
	Service   *service.Service

	log     logrus.FieldLogger
	closers []func() error
}

func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger, opts Options) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{log: log}

	kv, err := a.openLocalStore(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Ledger = ledger.New(kv)
	a.Remote = a.openRemote(cfg)

	if opts.Offline {
		a.Probe = connectivity.NewStatic(false)
		log.Info("connectivity: forced offline")
	} else {
		a.Probe = connectivity.NewPingProbe(a.Remote, 0)
	}

	a.Engine = syncer.NewEngine(a.Ledger, a.Remote, a.Probe, syncer.Options{
		MaxAttempts:   cfg.MaxSyncAttempts,
		RemoteTimeout: cfg.RemoteTimeout(),
		Logger:        log,
	})
	a.Service = service.New(a.Ledger, a.Remote, a.Probe, a.Engine, service.Options{
		Location:      cfg.Location(),
		Logger:        log,
		RemoteTimeout: cfg.RemoteTimeout(),
		Suggester:     recommendation.NewEngine(a.openSuggestionCache(ctx, cfg), cfg.SuggestionTTL()),
	})
	a.Watcher = connectivity.NewWatcher(a.Probe, cfg.ProbeInterval(), log)
	a.Scheduler = syncer.NewScheduler(a.Engine, a.Watcher, cfg.SyncInterval(), log)

	return a, nil
}

// Start launches the connectivity watcher and the background sync loop.
func (a *App) Start(ctx context.Context) {
	a.Watcher.Start(ctx)
	a.Scheduler.Start(ctx)
}

// Close stops background work and releases stores in reverse open order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Watcher != nil {
		a.Watcher.Stop()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openLocalStore(ctx context.Context, cfg config.Config) (localstore.KV, error) {
	switch cfg.LocalStore {
	case config.LocalStoreSQLite, "":
		kv, err := sqlite.Open(ctx, cfg.LocalStorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		a.log.WithField("path", cfg.LocalStorePath).Info("local store: sqlite")
		return kv, nil
	case config.LocalStoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("LOCAL_STORE=redis needs REDIS_ADDR")
		}
		kv := rediskv.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisKeyPrefix)
		if err := kv.Ping(ctx); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("redis unavailable: %w", err)
		}
		a.closers = append(a.closers, kv.Close)
		a.log.WithField("addr", cfg.RedisAddr).Info("local store: redis")
		return kv, nil
	case config.LocalStoreMemory:
		a.log.Warn("local store: in-memory, sales are lost on exit")
		return kvmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown LOCAL_STORE %q", cfg.LocalStore)
	}
}

// openSuggestionCache prefers Redis and falls back to a process-local cache.
func (a *App) openSuggestionCache(ctx context.Context, cfg config.Config) cache.SuggestionCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemorySuggestionCache(0)
	}
	redisCache := cache.NewRedisSuggestionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisKeyPrefix)
	if err := redisCache.Ping(ctx); err != nil {
		_ = redisCache.Close()
		a.log.WithError(err).Warn("redis unavailable, using in-process suggestion cache")
		return cache.NewMemorySuggestionCache(0)
	}
	a.closers = append(a.closers, redisCache.Close)
	a.log.Info("suggestion cache: redis")
	return redisCache
}

func (a *App) openRemote(cfg config.Config) store.Remote {
	switch {
	case cfg.DatabaseURL != "":
		remote := newLazyRemote(func(ctx context.Context) (remoteConn, error) {
			pg, err := pgstore.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			return pg, nil
		})
		a.closers = append(a.closers, remote.Close)
		a.log.Info("remote: postgres")
		return remote
	case cfg.MongoURI != "":
		remote := newLazyRemote(func(ctx context.Context) (remoteConn, error) {
			mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return nil, err
			}
			return mg, nil
		})
		a.closers = append(a.closers, remote.Close)
		a.log.WithField("database", cfg.MongoDatabase).Info("remote: mongodb")
		return remote
	default:
		a.log.Warn("remote: in-memory, set DATABASE_URL or MONGODB_URI to share sales")
		return remotememory.New()
	}
}
