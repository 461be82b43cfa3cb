// internal/store/store.go
package store

import (
	"database/sql"

	"outreach-engine/internal/common/logger"
)

// Store is the persistence layer over Postgres. All sequence state that
// must survive a restart lives behind it; anything held only in memory
// or Redis is reconstructible.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}
