// persistence/sqlite.go
package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: `
        CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id TEXT NOT NULL UNIQUE,
            mode TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            last_seen_at INTEGER NOT NULL DEFAULT 0
        )`,
	maxOpen: 1,
}

// NewSQLite opens a directory stored in a single SQLite file, creating the
// parent directory when needed.
func NewSQLite(path string) (*SQLDirectory, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return openSQL(sqliteDialect, path)
}
