package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/4thel00z/keeper/internal/migrations"
	"github.com/charmbracelet/log"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// OpenDB opens (creating if needed) the SQLite database holding the event log
// and merge-base cache, and migrates it to the current schema.
//
// WAL plus a busy timeout lets concurrent hook processes append without
// interleaving; each append is one SQLite transaction.
func OpenDB(path string, logger *log.Logger) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas below are per connection.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := migrations.Run(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Debug("database ready", "path", path)
	return conn, nil
}
