package usagelog

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"inkwell-ai/internal/domain"
)

// SQLiteUsageLog implements domain.UsageRecorder using SQLite.
type SQLiteUsageLog struct {
	db *sql.DB
}

var _ domain.UsageRecorder = (*SQLiteUsageLog)(nil)

// NewSQLiteUsageLog opens (or creates) a SQLite database at dbPath and runs
// the schema migration. Missing parent directories are created.
func NewSQLiteUsageLog(dbPath string) (*SQLiteUsageLog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create usage db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}
	return &SQLiteUsageLog{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL DEFAULT '',
			project_id    TEXT NOT NULL DEFAULT '',
			skill_id      TEXT NOT NULL DEFAULT '',
			provider      TEXT NOT NULL,
			model         TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records (user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records (provider, created_at)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (l *SQLiteUsageLog) Close() error {
	return l.db.Close()
}

// Record persists one usage record. A zero ID or CreatedAt is filled in.
func (l *SQLiteUsageLog) Record(ctx context.Context, rec domain.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = newRecordID(rec.CreatedAt)
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO usage_records (id, user_id, project_id, skill_id, provider, model, input_tokens, output_tokens, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.UserID, rec.ProjectID, rec.SkillID, rec.Provider, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func newRecordID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Summary aggregates usage per provider over a time window.
type Summary struct {
	Provider     string `json:"provider"`
	Requests     int    `json:"requests"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Summarize returns per-provider totals for records created at or after since.
func (l *SQLiteUsageLog) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT provider, COUNT(*), SUM(input_tokens), SUM(output_tokens) FROM usage_records WHERE created_at >= ? GROUP BY provider ORDER BY provider",
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Provider, &s.Requests, &s.InputTokens, &s.OutputTokens); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Recent returns up to limit records, newest first.
func (l *SQLiteUsageLog) Recent(ctx context.Context, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, user_id, project_id, skill_id, provider, model, input_tokens, output_tokens, created_at FROM usage_records ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ProjectID, &rec.SkillID,
			&rec.Provider, &rec.Model, &rec.InputTokens, &rec.OutputTokens, &createdStr); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}
