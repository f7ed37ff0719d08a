package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Init creates the tables on first boot. Deleting a user cascades to the
// tasks assigned to or created by that user, and to their refresh tokens.
func Init(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			username      VARCHAR(50)  NOT NULL,
			email         VARCHAR(100) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_username_key UNIQUE (username),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          BIGSERIAL PRIMARY KEY,
			title       VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
			priority    TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			due_date    DATE,
			user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_by  BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks (user_id)`,
		`CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status)`,
		`CREATE INDEX IF NOT EXISTS tasks_priority_idx ON tasks (priority)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id          UUID PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash  TEXT NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL,
			revoked_at  TIMESTAMPTZ,
			replaced_by UUID,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx ON refresh_tokens (user_id)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
