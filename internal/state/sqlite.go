package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps poller reads from blocking dispatcher writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any outstanding
// migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Watermark(ctx context.Context, folder string) (uint32, error) {
	var uid uint32
	err := s.db.GetContext(ctx, &uid, "SELECT last_uid FROM watermarks WHERE folder = ?", folder)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading watermark for %s: %w", folder, err)
	}
	return uid, nil
}

func (s *SQLiteStore) AdvanceWatermark(ctx context.Context, folder string, uid uint32) error {
	// The WHERE clause keeps the ledger monotonic under concurrent writers.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (folder, last_uid) VALUES (?, ?)
		ON CONFLICT(folder) DO UPDATE SET last_uid = excluded.last_uid
		WHERE excluded.last_uid > watermarks.last_uid`,
		folder, uid,
	)
	if err != nil {
		return fmt.Errorf("advancing watermark for %s: %w", folder, err)
	}
	return nil
}

func (s *SQLiteStore) Session(ctx context.Context, chatKey string) (*Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess,
		"SELECT chat_key, uid, folder, updated_at FROM sessions WHERE chat_key = ?", chatKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session for %s: %w", chatKey, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) PutSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_key, uid, folder, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_key) DO UPDATE SET
			uid = excluded.uid, folder = excluded.folder, updated_at = excluded.updated_at`,
		sess.ChatKey, sess.UID, sess.Folder, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing session for %s: %w", sess.ChatKey, err)
	}
	return nil
}

func (s *SQLiteStore) ClearSession(ctx context.Context, chatKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE chat_key = ?", chatKey); err != nil {
		return fmt.Errorf("clearing session for %s: %w", chatKey, err)
	}
	return nil
}

// stagePayload is the JSON shape persisted in the stages.payload column.
type stagePayload struct {
	UID    uint32 `json:"uid,omitempty"`
	Folder string `json:"folder,omitempty"`
	Draft  string `json:"draft,omitempty"`
}

func (s *SQLiteStore) Stage(ctx context.Context, chatKey string) (*Stage, error) {
	var row struct {
		Stage   string `db:"stage"`
		Payload string `db:"payload"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT stage, payload FROM stages WHERE chat_key = ?", chatKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoStage
	}
	if err != nil {
		return nil, fmt.Errorf("reading stage for %s: %w", chatKey, err)
	}

	var p stagePayload
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return nil, fmt.Errorf("decoding stage payload for %s: %w", chatKey, err)
	}

	return &Stage{
		ChatKey: chatKey,
		Kind:    StageKind(row.Stage),
		UID:     p.UID,
		Folder:  p.Folder,
		Draft:   p.Draft,
	}, nil
}

func (s *SQLiteStore) PutStage(ctx context.Context, st Stage) error {
	payload, err := json.Marshal(stagePayload{UID: st.UID, Folder: st.Folder, Draft: st.Draft})
	if err != nil {
		return fmt.Errorf("encoding stage payload for %s: %w", st.ChatKey, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stages (chat_key, stage, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_key) DO UPDATE SET
			stage = excluded.stage, payload = excluded.payload, updated_at = excluded.updated_at`,
		st.ChatKey, string(st.Kind), string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing stage for %s: %w", st.ChatKey, err)
	}
	return nil
}

func (s *SQLiteStore) ClearStage(ctx context.Context, chatKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM stages WHERE chat_key = ?", chatKey); err != nil {
		return fmt.Errorf("clearing stage for %s: %w", chatKey, err)
	}
	return nil
}

func (s *SQLiteStore) Language(ctx context.Context, chatKey string) (string, error) {
	var code string
	err := s.db.GetContext(ctx, &code, "SELECT code FROM languages WHERE chat_key = ?", chatKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading language for %s: %w", chatKey, err)
	}
	return code, nil
}

func (s *SQLiteStore) PutLanguage(ctx context.Context, chatKey, code string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO languages (chat_key, code) VALUES (?, ?)
		ON CONFLICT(chat_key) DO UPDATE SET code = excluded.code`,
		chatKey, code,
	)
	if err != nil {
		return fmt.Errorf("writing language for %s: %w", chatKey, err)
	}
	return nil
}

func (s *SQLiteStore) RecordSnooze(ctx context.Context, sn Snooze) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snoozes (chat_key, uid, folder, duration, requested_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_key, uid) DO UPDATE SET
			folder = excluded.folder, duration = excluded.duration, requested_at = excluded.requested_at`,
		sn.ChatKey, sn.UID, sn.Folder, sn.Duration, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording snooze for %s/%d: %w", sn.ChatKey, sn.UID, err)
	}
	return nil
}
