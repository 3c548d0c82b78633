package raidguard

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const warningSchema = `
CREATE TABLE IF NOT EXISTS warnings (
	id           TEXT PRIMARY KEY,
	community_id TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	reason       TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_warnings_user ON warnings (community_id, user_id);

CREATE TABLE IF NOT EXISTS cases (
	id           TEXT PRIMARY KEY,
	seq          INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	community_id TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	reason       TEXT NOT NULL,
	duration     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cases_community ON cases (community_id, seq);
`

// SQLWarningStore persists warnings and moderation cases in SQLite.
type SQLWarningStore struct {
	db *sqlx.DB
}

// NewSQLWarningStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLWarningStore(path string) (*SQLWarningStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open warning database: %w", err)
	}
	if _, err := db.Exec(warningSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure warning schema: %w", err)
	}
	return &SQLWarningStore{db: db}, nil
}

func (s *SQLWarningStore) AddWarning(ctx context.Context, w Warning) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO warnings (id, community_id, user_id, moderator_id, reason, created_at)
		 VALUES (:id, :community_id, :user_id, :moderator_id, :reason, :created_at)`, w)
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	return nil
}

func (s *SQLWarningStore) CountWarnings(ctx context.Context, communityID, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM warnings WHERE community_id = ? AND user_id = ?`, communityID, userID)
	if err != nil {
		return 0, fmt.Errorf("count warnings: %w", err)
	}
	return count, nil
}

func (s *SQLWarningStore) ListWarnings(ctx context.Context, communityID, userID string, limit int) ([]Warning, error) {
	if limit <= 0 {
		limit = 25
	}
	var warnings []Warning
	err := s.db.SelectContext(ctx, &warnings,
		`SELECT * FROM warnings WHERE community_id = ? AND user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, communityID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	return warnings, nil
}

func (s *SQLWarningStore) AddCase(ctx context.Context, c CaseRecord) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO cases (id, seq, kind, community_id, moderator_id, target_id, reason, duration, created_at)
		 VALUES (:id, :seq, :kind, :community_id, :moderator_id, :target_id, :reason, :duration, :created_at)`, c)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *SQLWarningStore) NextCaseSeq(ctx context.Context, communityID string) (int64, error) {
	var seq int64
	err := s.db.GetContext(ctx, &seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM cases WHERE community_id = ?`, communityID)
	if err != nil {
		return 0, fmt.Errorf("next case seq: %w", err)
	}
	return seq, nil
}

func (s *SQLWarningStore) Close() error { return s.db.Close() }
