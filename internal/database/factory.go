package database

import (
	"fmt"

	"github.com/denisAlshanov/mediagrab/internal/config"
)

// NewHistoryStore opens the store selected by DATABASE_DRIVER
func NewHistoryStore(cfg *config.Config) (HistoryStore, error) {
	switch cfg.Database.Driver {
	case config.DatabasePostgres:
		return NewPostgresDB(&cfg.Postgres)
	case config.DatabaseMongo:
		return NewMongoDB(&cfg.MongoDB)
	case config.DatabaseMemory, "":
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
