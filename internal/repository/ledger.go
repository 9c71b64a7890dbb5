package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

const ledgerColumns = `id, user_id, resource, amount, kind, task_id, description, created_at`

// LedgerRepository handles resource ledger persistence.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Resource,
		&e.Amount,
		&e.Kind,
		&e.TaskID,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// RecordEntry appends an entry. A zero CreatedAt means now.
func (r *LedgerRepository) RecordEntry(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, error) {
	query := `
		INSERT INTO ledger (user_id, resource, amount, kind, task_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING ` + ledgerColumns

	var createdAt *time.Time
	if !e.CreatedAt.IsZero() {
		createdAt = &e.CreatedAt
	}
	entry, err := scanEntry(r.pool.QueryRow(ctx, query,
		e.UserID, e.Resource, e.Amount, e.Kind, e.TaskID, e.Description, createdAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return entry, nil
}

// EntriesForUser retrieves a user's entries, newest first.
func (r *LedgerRepository) EntriesForUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// DailyXPLeaders retrieves the users who gained the most XP in [from, to).
func (r *LedgerRepository) DailyXPLeaders(ctx context.Context, from, to time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT l.user_id, u.username, SUM(l.amount) AS xp_gained
		FROM ledger l
		JOIN users u ON l.user_id = u.id
		WHERE l.resource = 'xp'
		  AND l.amount > 0
		  AND l.created_at >= $1
		  AND l.created_at < $2
		GROUP BY l.user_id, u.username
		ORDER BY xp_gained DESC, l.user_id ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily leaders: %w", err)
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		if err := rows.Scan(&rank.UserID, &rank.Username, &rank.XPGained); err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily ranks: %w", err)
	}
	return ranks, nil
}
