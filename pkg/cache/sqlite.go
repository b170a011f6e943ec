package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"DeForge/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    cache_key   TEXT PRIMARY KEY,
    payload     BLOB NOT NULL,
    created_ns  INTEGER NOT NULL,
    expires_ns  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_expires ON results(expires_ns);
`

// SQLite is a persistent cache shared across process restarts
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens or creates the cache database at path. A nil clock uses time.Now.
func OpenSQLite(path string, ttl time.Duration, now func() time.Time) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}

	return &SQLite{db: db, ttl: ttl, now: clockOrNow(now)}, nil
}

// Get implements Store
func (s *SQLite) Get(ctx context.Context, key string) (*models.ForensicAnalysisResult, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM results WHERE cache_key = ? AND expires_ns > ?`,
		key, s.now().UnixNano(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cached result: %w", err)
	}

	result, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set implements Store
func (s *SQLite) Set(ctx context.Context, key string, result *models.ForensicAnalysisResult) error {
	payload, err := encode(result)
	if err != nil {
		return err
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (cache_key, payload, created_ns, expires_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_ns = excluded.created_ns,
			expires_ns = excluded.expires_ns`,
		key, payload, now.UnixNano(), now.Add(s.ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store cached result: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE expires_ns <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close implements Store
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
