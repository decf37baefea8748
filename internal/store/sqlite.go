package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"algometa/internal/metadata"
)

// SQLite stores each record as one row of the algorithms table. The body
// column holds the same JSON document the Dir backend writes.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("database path not set")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("Failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("Failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &SQLite{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Opened SQLite store", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables.
func (s *SQLite) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS algorithms (
		guid TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create algorithms table: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, guid string) (*metadata.AlgorithmRecord, error) {
	if err := checkGUID(guid); err != nil {
		return nil, err
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM algorithms WHERE guid = ?`, guid).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", guid, err)
	}
	rec, err := metadata.Decode([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", guid, err)
	}
	return rec, nil
}

func (s *SQLite) Put(ctx context.Context, rec *metadata.AlgorithmRecord) error {
	if err := checkGUID(rec.GUID); err != nil {
		return err
	}
	data, err := metadata.Encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO algorithms (guid, name, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(guid) DO UPDATE SET
			name = excluded.name,
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP
	`, rec.GUID, rec.Name, string(data))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", rec.GUID, err)
	}
	s.logger.Debug("Record saved", zap.String("guid", rec.GUID), zap.Int("bytes", len(data)))
	return nil
}

func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guid FROM algorithms ORDER BY guid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, err
		}
		keys = append(keys, guid)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.logger.Debug("Closing SQLite store", zap.String("path", s.path))
	return s.db.Close()
}
