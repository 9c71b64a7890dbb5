package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

const userColumns = `id, username, email, display_name, level, xp, xpass, title, streak, is_locked, last_login_date, created_at`

// UserRepository handles user persistence in PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.DisplayName,
		&u.Level,
		&u.XP,
		&u.XPass,
		&u.Title,
		&u.Streak,
		&u.IsLocked,
		&u.LastLoginDate,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return r.getBy(ctx, `id = $1`, id)
}

// GetUserByUsername retrieves a user by username.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getBy(ctx, `username = $1`, username)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, `LOWER(email) = LOWER($1)`, email)
}

// CreateUser registers a user with the starting level, credits and title.
func (r *UserRepository) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	query := `
		INSERT INTO users (username, email, display_name, level, xp, xpass, title, streak, is_locked, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, 0, FALSE, NOW())
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		nu.Username,
		nu.Email,
		nu.DisplayName,
		model.InitialLevel,
		model.InitialXPass,
		model.TitleForLevel(model.InitialLevel),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// UpdateUser merges the supplied fields into the stored user.
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	query := `
		UPDATE users SET
			display_name    = COALESCE($2, display_name),
			level           = COALESCE($3, level),
			title           = COALESCE($4, title),
			streak          = COALESCE($5, streak),
			is_locked       = COALESCE($6, is_locked),
			last_login_date = COALESCE($7, last_login_date)
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		id,
		upd.DisplayName,
		upd.Level,
		upd.Title,
		upd.Streak,
		upd.IsLocked,
		upd.LastLoginDate,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// AdjustResources adds to xp and xpass in one statement, flooring at zero.
func (r *UserRepository) AdjustResources(ctx context.Context, id int64, xpDelta, xpassDelta int64) (*model.User, error) {
	query := `
		UPDATE users
		SET xp = GREATEST(xp + $2, 0), xpass = GREATEST(xpass + $3, 0)
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, id, xpDelta, xpassDelta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to adjust resources: %w", err)
	}
	return u, nil
}

// TopUsers retrieves the highest ranked users by level, then xp.
func (r *UserRepository) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY level DESC, xp DESC, id ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
