package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDSN is the default data source: a file under the system temp
// directory. The snapshot store is a cache rebuilt from source feeds, so
// nothing needs to survive a restart, but it must be file-backed: SQLite's
// shared-cache in-memory mode takes table-level locks that busy_timeout
// does not cover, so publishes fail under concurrent read load there.
func DefaultDSN() string {
	return filepath.Join(os.TempDir(), "attest-desk-snapshots.db")
}

// Open opens the snapshot database and verifies the connection.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxIdleConns(4)

	if _, err = db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}
