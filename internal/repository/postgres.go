package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PgStore is the PostgreSQL Store.
type PgStore struct {
	*UserRepository
	*TaskRepository
	*PunishmentRepository
	*AchievementRepository
	*LedgerRepository
}

var _ Store = (*PgStore)(nil)

// NewPgStore creates a PgStore over an open pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		UserRepository:        NewUserRepository(pool),
		TaskRepository:        NewTaskRepository(pool),
		PunishmentRepository:  NewPunishmentRepository(pool),
		AchievementRepository: NewAchievementRepository(pool),
		LedgerRepository:      NewLedgerRepository(pool),
	}
}

var migrations = []struct {
	name string
	sql  string
}{
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			display_name VARCHAR(128) NOT NULL DEFAULT '',
			level INT NOT NULL DEFAULT 1,
			xp BIGINT NOT NULL DEFAULT 0 CHECK (xp >= 0),
			xpass BIGINT NOT NULL DEFAULT 100 CHECK (xpass >= 0),
			title VARCHAR(64) NOT NULL DEFAULT 'Novice Challenger',
			streak INT NOT NULL DEFAULT 0,
			is_locked BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));
	`},
	{"tasks table", `
		CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			category VARCHAR(64) NOT NULL,
			difficulty VARCHAR(16) NOT NULL,
			proof_type VARCHAR(16) NOT NULL,
			xp_reward BIGINT NOT NULL CHECK (xp_reward >= 0),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_by VARCHAR(8) NOT NULL,
			ai_recommendation TEXT,
			is_special_challenge BOOLEAN NOT NULL DEFAULT FALSE,
			failure_penalty_type VARCHAR(16),
			failure_penalty_amount BIGINT,
			expires_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			proof TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (expires_at > created_at)
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);
		CREATE INDEX IF NOT EXISTS idx_tasks_active_expiry ON tasks(expires_at) WHERE status = 'active';
	`},
	{"punishment_options table", `
		CREATE TABLE IF NOT EXISTS punishment_options (
			id BIGSERIAL PRIMARY KEY,
			task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			penalty_type VARCHAR(16) NOT NULL,
			penalty_amount BIGINT NOT NULL CHECK (penalty_amount >= 0),
			is_selected BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_punishment_options_task ON punishment_options(task_id);
	`},
	{"achievements table", `
		CREATE TABLE IF NOT EXISTS achievements (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(128) NOT NULL,
			description TEXT NOT NULL,
			icon VARCHAR(64) NOT NULL DEFAULT '',
			xp_reward BIGINT NOT NULL DEFAULT 0,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);
	`},
	{"ledger table", `
		CREATE TABLE IF NOT EXISTS ledger (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			resource VARCHAR(16) NOT NULL,
			amount BIGINT NOT NULL,
			kind VARCHAR(32) NOT NULL,
			task_id BIGINT REFERENCES tasks(id) ON DELETE SET NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger(user_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_ledger_xp_time ON ledger(created_at) WHERE resource = 'xp';
	`},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
