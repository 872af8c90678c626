package repository

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
)

// New builds the repository for the configured storage mode.
// In mirrored mode a missing database handle degrades to local-only.
func New(mode string, db *gorm.DB, store cache.KeyValueStore) (Repository, error) {
	switch mode {
	case config.StorageModeRemote:
		if db == nil {
			return nil, fmt.Errorf("storage mode %s requires a database connection", mode)
		}
		return NewGormRepository(db), nil

	case config.StorageModeLocal:
		if store == nil {
			return nil, fmt.Errorf("storage mode %s requires a key/value store", mode)
		}
		return NewLocalRepository(store), nil

	case config.StorageModeMirrored:
		if store == nil {
			return nil, fmt.Errorf("storage mode %s requires a key/value store", mode)
		}
		local := NewLocalRepository(store)
		if db == nil {
			log.Warn().Msg("No database connection, running on the local store only")
			return local, nil
		}
		return NewMirroredRepository(NewGormRepository(db), local), nil

	default:
		return nil, fmt.Errorf("unknown storage mode %q", mode)
	}
}
