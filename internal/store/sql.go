package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// DocStore keeps puzzles and snapshots as JSONB documents in a libSQL database.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(ctx context.Context, db *sql.DB) (*DocStore, error) {
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS puzzles (
			language   TEXT NOT NULL,
			id         TEXT NOT NULL,
			created_at TEXT NOT NULL,
			data       JSONB NOT NULL,
			PRIMARY KEY (language, id)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			key  TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	return &DocStore{db: db}, nil
}

func (s *DocStore) List(ctx context.Context, lang models.Language) ([]models.Puzzle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM puzzles WHERE language = ?`, string(lang),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Puzzle
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p models.Puzzle
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decoding puzzle: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortPuzzles(out)
	return out, nil
}

func (s *DocStore) Get(ctx context.Context, lang models.Language, id string) (models.Puzzle, error) {
	var p models.Puzzle
	err := s.get(ctx,
		`SELECT json(data) FROM puzzles WHERE language = ? AND id = ?`, &p, string(lang), id,
	)
	return p, err
}

func (s *DocStore) Upsert(ctx context.Context, lang models.Language, p models.Puzzle) error {
	p.Language = lang
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO puzzles (language, id, created_at, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(language, id) DO UPDATE SET created_at = excluded.created_at, data = excluded.data`,
		string(lang), p.ID, p.CreatedAt.UTC().Format(time.RFC3339Nano), string(data),
	)
	return err
}

func (s *DocStore) Delete(ctx context.Context, lang models.Language, id string) error {
	return s.del(ctx, `DELETE FROM puzzles WHERE language = ? AND id = ?`, string(lang), id)
}

func (s *DocStore) Load(ctx context.Context, key string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.get(ctx, `SELECT json(data) FROM snapshots WHERE key = ?`, &snap, key)
	return snap, err
}

func (s *DocStore) Save(ctx context.Context, key string, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data) VALUES (?, jsonb(?))
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data`,
		key, string(data),
	)
	return err
}

func (s *DocStore) Clear(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

func (s *DocStore) get(ctx context.Context, query string, dest any, args ...any) error {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (s *DocStore) del(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
