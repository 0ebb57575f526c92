package database

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"sprout/internal/config"
	"sprout/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var readDB atomic.Pointer[gorm.DB]

// ConnectReplica opens the read replica at DB_READ_HOST, if configured, and
// registers it for GetReadDB. It returns nil when no replica is configured.
func ConnectReplica(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBReadHost == "" {
		return nil, nil
	}
	replica := *cfg
	replica.DBHost = cfg.DBReadHost

	db, err := open(postgres.Open(DSN(&replica)), &replica)
	if err != nil {
		return nil, fmt.Errorf("read replica: %w", err)
	}
	middleware.Logger.Info("Read replica connected", slog.String("host", cfg.DBReadHost))
	SetReadDB(db)
	return db, nil
}

// SetReadDB registers db as the read replica. nil routes reads to the primary.
func SetReadDB(db *gorm.DB) {
	readDB.Store(db)
}

// GetReadDB returns the read replica, or nil when reads go to the primary.
func GetReadDB() *gorm.DB {
	return readDB.Load()
}
