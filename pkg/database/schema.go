package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// Migrator is implemented by backends that can create their own schema.
// Supabase schemas are applied through the SQL editor with PostgresSchema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// PostgresSchema PostgreSQL / Supabase 表结构
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS clients (
    id            BIGINT PRIMARY KEY,
    chat_id       BIGINT NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    username      TEXT NOT NULL DEFAULT '',
    project       TEXT NOT NULL DEFAULT '',
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    notify_opt_in BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ideas (
    id               TEXT PRIMARY KEY,
    author_id        BIGINT NOT NULL,
    author_project   TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    modality         TEXT NOT NULL CHECK (modality IN ('text', 'voice')),
    transcript       TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'done')),
    moderator_id     BIGINT,
    moderated_at     TIMESTAMPTZ,
    target_client_id BIGINT,
    completed_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ideas_status_created ON ideas (status, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS interest_requests (
    idea_id    TEXT NOT NULL REFERENCES ideas (id),
    client_id  BIGINT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (idea_id, client_id)
);

CREATE TABLE IF NOT EXISTS broadcast_logs (
    id         TEXT PRIMARY KEY,
    idea_id    TEXT NOT NULL,
    policy     TEXT NOT NULL,
    attempted  INTEGER NOT NULL DEFAULT 0,
    delivered  INTEGER NOT NULL DEFAULT 0,
    failed     JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS session_modes (
    user_id    BIGINT PRIMARY KEY,
    mode       TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_modes_expires ON session_modes (expires_at);
`

// sqliteSchema stores timestamps as fixed width UTC text so that string
// comparison and ORDER BY follow chronological order.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clients (
    id            INTEGER PRIMARY KEY,
    chat_id       INTEGER NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    username      TEXT NOT NULL DEFAULT '',
    project       TEXT NOT NULL DEFAULT '',
    active        INTEGER NOT NULL DEFAULT 1,
    notify_opt_in INTEGER NOT NULL DEFAULT 1,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ideas (
    id               TEXT PRIMARY KEY,
    author_id        INTEGER NOT NULL,
    author_project   TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    modality         TEXT NOT NULL CHECK (modality IN ('text', 'voice')),
    transcript       TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'done')),
    moderator_id     INTEGER,
    moderated_at     TEXT,
    target_client_id INTEGER,
    completed_at     TEXT,
    created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ideas_status_created ON ideas (status, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS interest_requests (
    idea_id    TEXT NOT NULL REFERENCES ideas (id),
    client_id  INTEGER NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL,
    PRIMARY KEY (idea_id, client_id)
);

CREATE TABLE IF NOT EXISTS broadcast_logs (
    id         TEXT PRIMARY KEY,
    idea_id    TEXT NOT NULL,
    policy     TEXT NOT NULL,
    attempted  INTEGER NOT NULL DEFAULT 0,
    delivered  INTEGER NOT NULL DEFAULT 0,
    failed     TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_modes (
    user_id    INTEGER PRIMARY KEY,
    mode       TEXT NOT NULL,
    expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_modes_expires ON session_modes (expires_at);
`

// storageErr wraps a driver failure so callers can match models.ErrStorage
func storageErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStorage, err)
}

// encodeFailed serializes the failed recipient list, never as null
func encodeFailed(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// normalizeLimit applies the pending list bounds: default 10, at most 50
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}

// transitionColumns returns the columns stamped by a transition
func transitionColumns(to models.IdeaStatus) (actorCol, timeCol string) {
	if to == models.IdeaDone {
		return "target_client_id", "completed_at"
	}
	return "moderator_id", "moderated_at"
}
