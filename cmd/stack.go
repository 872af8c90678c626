package cmd

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/engine"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/database"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

// stack is the storage and engine shared by the server and the worker
type stack struct {
	db     *gorm.DB
	store  cache.KeyValueStore
	repo   repository.Repository
	events eventstore.EventStore
	engine *engine.Engine
	redis  *cache.RedisStore
}

func buildStack(cfg config.Config) (*stack, error) {
	s := &stack{}

	if cfg.Storage.LocalBackend == "redis" {
		redisStore, err := cache.NewRedisStore(cfg.Redis, cfg.Storage.KeyPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize redis store")
		}
		s.redis = redisStore
		s.store = redisStore
	} else {
		log.Warn().Msg("Using in-memory local store, rows are lost on restart")
		s.store = cache.NewMemoryStore()
	}

	if cfg.Storage.Mode != config.StorageModeLocal {
		db, err := database.Connect(cfg.Database)
		switch {
		case err == nil:
			if err := database.Migrate(db); err != nil {
				return nil, err
			}
			s.db = db
		case cfg.Storage.Mode == config.StorageModeMirrored:
			log.Warn().Err(err).Msg("Database unavailable, continuing on the local store")
		default:
			return nil, err
		}
	}

	repo, err := repository.New(cfg.Storage.Mode, s.db, s.store)
	if err != nil {
		return nil, err
	}
	s.repo = repo

	if s.db != nil {
		s.events = eventstore.NewGormEventStore(s.db)
	} else {
		s.events = eventstore.NewKVEventStore(s.store)
	}

	s.engine = engine.New(s.repo, s.events, engine.Options{
		DedupeDeliveries: cfg.Reconciliation.DedupeDeliveries,
	})

	return s, nil
}

// checkWorkerStorage rejects setups where the worker cannot see the server's
// rows. An in-memory local store lives in one process only, so without a
// database the worker needs the redis backend.
func checkWorkerStorage(cfg config.Config, hasDB bool) error {
	if hasDB || cfg.Storage.LocalBackend == "redis" {
		return nil
	}
	return errors.Errorf("worker needs storage.local_backend redis or a database in storage mode %s", cfg.Storage.Mode)
}

func (s *stack) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis store")
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
