package records

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite file backing the monthly
// record cache. The cache is independent of the catalog file and survives
// catalog rebuilds.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// busy_timeout covers concurrent writers during bulk fills;
	// WAL lets series reads proceed alongside them.
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	dsn := fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}
