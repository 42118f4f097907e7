// persistence/open.go
package persistence

import (
	"fmt"

	"github.com/wfunc/blockroom/config"
)

// Open returns the directory store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Directory, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryDirectory(), nil
	case "gorm":
		return NewGormPostgreSQL(cfg.Postgres.DSN())
	case "postgres":
		return NewPostgreSQL(cfg.Postgres.DSN())
	case "sqlite":
		return NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
