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

const punishmentColumns = `id, task_id, description, penalty_type, penalty_amount, is_selected, created_at`

// PunishmentRepository handles punishment option persistence in PostgreSQL.
type PunishmentRepository struct {
	pool *pgxpool.Pool
}

// NewPunishmentRepository creates a new PunishmentRepository instance.
func NewPunishmentRepository(pool *pgxpool.Pool) *PunishmentRepository {
	return &PunishmentRepository{pool: pool}
}

func scanPunishment(row pgx.Row) (*model.PunishmentOption, error) {
	var p model.PunishmentOption
	err := row.Scan(
		&p.ID,
		&p.TaskID,
		&p.Description,
		&p.PenaltyType,
		&p.PenaltyAmount,
		&p.IsSelected,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const insertPunishment = `
	INSERT INTO punishment_options (task_id, description, penalty_type, penalty_amount, is_selected, created_at)
	VALUES ($1, $2, $3, $4, FALSE, NOW())
	RETURNING ` + punishmentColumns

func insertPunishments(ctx context.Context, tx pgx.Tx, taskID int64, opts []model.PunishmentOption) ([]*model.PunishmentOption, error) {
	out := make([]*model.PunishmentOption, 0, len(opts))
	for _, o := range opts {
		p, err := scanPunishment(tx.QueryRow(ctx, insertPunishment, taskID, o.Description, o.PenaltyType, o.PenaltyAmount))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func punishmentsInTx(ctx context.Context, tx pgx.Tx, taskID int64) ([]*model.PunishmentOption, error) {
	rows, err := tx.Query(ctx, `SELECT `+punishmentColumns+` FROM punishment_options WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PunishmentOption
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FailTask fails an active task, inserts its options unless some exist and
// locks the owner in one transaction.
func (r *PunishmentRepository) FailTask(ctx context.Context, id int64, build func(*model.Task) []model.PunishmentOption) (*model.Task, []*model.PunishmentOption, error) {
	var (
		failed *model.Task
		opts   []*model.PunishmentOption
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		failed, err = scanTask(tx.QueryRow(ctx, `
			UPDATE tasks SET status = $2
			WHERE id = $1 AND status = $3
			RETURNING `+taskColumns, id, model.StatusFailed, model.StatusActive))
		if errors.Is(err, pgx.ErrNoRows) {
			var current model.Status
			if err := tx.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&current); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrTaskNotFound
				}
				return err
			}
			if err := model.CheckTransition(current, model.StatusFailed); err != nil {
				return err
			}
			return fmt.Errorf("task %d changed status concurrently", id)
		}
		if err != nil {
			return err
		}

		if opts, err = punishmentsInTx(ctx, tx, id); err != nil {
			return err
		}
		if len(opts) == 0 {
			if opts, err = insertPunishments(ctx, tx, id, build(failed)); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE users SET is_locked = TRUE WHERE id = $1`, failed.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, model.ErrInvalidTransition) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to fail task: %w", err)
	}
	return failed, opts, nil
}

// CreatePunishments inserts options for a task that has none. The task row
// is locked first so concurrent callers store a single set.
func (r *PunishmentRepository) CreatePunishments(ctx context.Context, taskID int64, opts []model.PunishmentOption) ([]*model.PunishmentOption, error) {
	var out []*model.PunishmentOption
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTaskNotFound
			}
			return err
		}

		existing, err := punishmentsInTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}
		out, err = insertPunishments(ctx, tx, taskID, opts)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || isForeignKeyViolation(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to create punishment options: %w", err)
	}
	return out, nil
}

// PunishmentsForTask lists the options of a task.
func (r *PunishmentRepository) PunishmentsForTask(ctx context.Context, taskID int64) ([]*model.PunishmentOption, error) {
	query := `SELECT ` + punishmentColumns + ` FROM punishment_options WHERE task_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list punishment options: %w", err)
	}
	defer rows.Close()

	var out []*model.PunishmentOption
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan punishment option: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPunishment retrieves an option by id.
func (r *PunishmentRepository) GetPunishment(ctx context.Context, id int64) (*model.PunishmentOption, error) {
	query := `SELECT ` + punishmentColumns + ` FROM punishment_options WHERE id = $1`

	p, err := scanPunishment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPunishmentNotFound
		}
		return nil, fmt.Errorf("failed to get punishment option: %w", err)
	}
	return p, nil
}

// SelectPunishment marks an option selected. The owning task row is locked
// so two selections for the same task serialize.
func (r *PunishmentRepository) SelectPunishment(ctx context.Context, id int64) (*model.PunishmentOption, error) {
	var selected *model.PunishmentOption
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var taskID int64
		err := tx.QueryRow(ctx, `
			SELECT t.id FROM tasks t
			JOIN punishment_options p ON p.task_id = t.id
			WHERE p.id = $1
			FOR UPDATE OF t`, id).Scan(&taskID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPunishmentNotFound
			}
			return err
		}

		var resolved bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM punishment_options WHERE task_id = $1 AND is_selected)`,
			taskID).Scan(&resolved)
		if err != nil {
			return err
		}
		if resolved {
			return ErrPunishmentResolved
		}

		selected, err = scanPunishment(tx.QueryRow(ctx,
			`UPDATE punishment_options SET is_selected = TRUE WHERE id = $1 RETURNING `+punishmentColumns, id))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrPunishmentNotFound) || errors.Is(err, ErrPunishmentResolved) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select punishment option: %w", err)
	}
	return selected, nil
}

// UnresolvedFailedTaskCount counts failed tasks with no selected option.
func (r *PunishmentRepository) UnresolvedFailedTaskCount(ctx context.Context, userID int64) (int, error) {
	const query = `
		SELECT COUNT(*) FROM tasks t
		WHERE t.user_id = $1 AND t.status = 'failed'
		AND NOT EXISTS (
			SELECT 1 FROM punishment_options p WHERE p.task_id = t.id AND p.is_selected
		)
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unresolved tasks: %w", err)
	}
	return n, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
