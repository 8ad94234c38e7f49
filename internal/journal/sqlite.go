package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/specialistvlad/blockgrid/internal/protocol"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS completed_blocks (
	task_id      TEXT    NOT NULL,
	coord        TEXT    NOT NULL,
	fingerprint  INTEGER NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	PRIMARY KEY (task_id, coord, fingerprint)
)`

// SQLite is a Journal persisted in a SQLite database file.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (and if needed creates) a journal database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) IsDone(ctx context.Context, key protocol.BlockKey, fingerprint uint64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM completed_blocks WHERE task_id = ? AND coord = ? AND fingerprint = ?`,
		key.TaskID, key.Coord, int64(fingerprint))
	if err != nil {
		return false, fmt.Errorf("failed to query journal for %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *SQLite) MarkDone(ctx context.Context, key protocol.BlockKey, fingerprint uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completed_blocks (task_id, coord, fingerprint, completed_at) VALUES (?, ?, ?, ?)`,
		key.TaskID, key.Coord, int64(fingerprint), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
