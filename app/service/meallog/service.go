package meallog

import (
	"context"
	"database/sql"
	"fitagent/app/config"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/do"
	_ "modernc.org/sqlite"
)

const (
	defaultListLimit = 50
	// fixed width so that created_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var _ do.Shutdownable = (*Service)(nil)

// Service is an append-only sqlite journal of food photo analyses.
// With no storage path configured it is disabled and every call is a no-op.
type Service struct {
	db *sql.DB
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return Open(cfg.Storage.Path)
}

func Open(path string) (*Service, error) {
	if path == "" {
		return &Service{}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Service{db: db}
	if err = s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Service) Enabled() bool {
	return s.db != nil
}

func (s *Service) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        message TEXT NOT NULL,
        nutrition_plan TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meals_session_created ON meals(session_id, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s.db == nil {
		return nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO meals (id, session_id, message, nutrition_plan, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.SessionID, entry.Message, entry.NutritionPlan,
		entry.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	return nil
}

// List returns the newest entries of a session first.
func (s *Service) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
        SELECT id, session_id, message, nutrition_plan, created_at
        FROM meals
        WHERE session_id = ?
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt string

		if err = rows.Scan(&entry.ID, &entry.SessionID, &entry.Message, &entry.NutritionPlan, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if entry.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	return entries, nil
}

func (s *Service) Shutdown() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
