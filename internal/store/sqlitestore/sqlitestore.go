// Package sqlitestore persists templates in a local SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"bioreader/internal/logging"
	"bioreader/internal/store"
)

// Store is a store.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or connects to the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "sqlitestore")}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns userID's templates in insertion order.
func (s *Store) List(ctx context.Context, userID string) ([]store.Template, error) {
	if userID == "" {
		return nil, store.ErrInvalidUser
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template, quality, finger, created_at FROM biometric_templates WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []store.Template
	for rows.Next() {
		var (
			id      int64
			t       store.Template
			created string
		)
		if err := rows.Scan(&id, &t.Template, &t.Quality, &t.Finger, &created); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		t.UserID = userID
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.Created = ts
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

// Save inserts one template row.
func (s *Store) Save(ctx context.Context, e store.Enrollment) error {
	if e.UserID == "" {
		return store.ErrInvalidUser
	}
	finger := e.Finger
	if finger == "" {
		finger = "right_index"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO biometric_templates (user_id, template, quality, finger, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.Template, e.Quality, finger, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	logging.WithContext(ctx, s.logger).Info("template stored",
		logging.String(logging.FieldEventType, "template_stored"),
		logging.Int("quality", e.Quality),
		logging.String("finger", finger),
	)
	return nil
}

// Delete removes every template for userID and reports how many were removed.
func (s *Store) Delete(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, store.ErrInvalidUser
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM biometric_templates WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete templates: %w", err)
	}
	return res.RowsAffected()
}
