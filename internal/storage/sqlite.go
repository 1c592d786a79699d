package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyike/StockAnalyzer/models"
	"github.com/dyike/StockAnalyzer/pkg/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    params TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    messages TEXT,
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs(status, updated_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, id string, rec *models.JobRecord) error {
	if err := checkStatus(rec.Status); err != nil {
		return err
	}
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	messages, err := encodeMessages(rec.Messages)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs (id, params, status, messages, error)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    params = excluded.params,
    status = excluded.status,
    messages = excluded.messages,
    error = excluded.error,
    created_at = CURRENT_TIMESTAMP,
    updated_at = CURRENT_TIMESTAMP
`, id, string(params), string(rec.Status), messages, rec.Error)
	if err != nil {
		return fmt.Errorf("put job %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, u models.JobUpdate) error {
	if err := checkStatus(u.Status); err != nil {
		return err
	}
	messages, err := encodeMessages(u.Messages)
	if err != nil {
		return err
	}

	// NULL/'' leave the column unchanged, matching JobRecord.Apply.
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET
    status = ?,
    messages = COALESCE(?, messages),
    error = CASE WHEN ? = '' THEN error ELSE ? END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, string(u.Status), messages, u.Error, u.Error, id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.JobRecord, error) {
	var (
		params   string
		status   string
		messages sql.NullString
		errText  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT params, status, messages, error FROM jobs WHERE id = ?`, id,
	).Scan(&params, &status, &messages, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	rec := &models.JobRecord{Status: models.JobStatus(status), Error: errText}
	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return nil, fmt.Errorf("decode params of %s: %w", id, err)
	}
	if messages.Valid {
		if err := json.Unmarshal([]byte(messages.String), &rec.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", id, err)
		}
	}
	return rec, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// encodeMessages maps nil to SQL NULL so "no messages yet" survives a round trip.
func encodeMessages(msgs []string) (any, error) {
	if msgs == nil {
		return nil, nil
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return string(data), nil
}
