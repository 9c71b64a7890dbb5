package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

const taskColumns = `id, user_id, title, description, category, difficulty, proof_type, xp_reward, status,
	created_by, ai_recommendation, is_special_challenge, failure_penalty_type, failure_penalty_amount,
	expires_at, completed_at, proof, created_at`

// TaskRepository handles task persistence in PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTaskRepository creates a new TaskRepository instance.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool, now: time.Now}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		t             model.Task
		penaltyType   *string
		penaltyAmount *int64
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.Difficulty,
		&t.ProofType,
		&t.XPReward,
		&t.Status,
		&t.CreatedBy,
		&t.AIRecommendation,
		&t.IsSpecialChallenge,
		&penaltyType,
		&penaltyAmount,
		&t.ExpiresAt,
		&t.CompletedAt,
		&t.Proof,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if penaltyType != nil && penaltyAmount != nil {
		t.FailurePenalty = &model.Penalty{Type: model.PenaltyType(*penaltyType), Amount: *penaltyAmount}
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]*model.Task, error) {
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a task by id.
func (r *TaskRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// CreateTask inserts an active task.
func (r *TaskRepository) CreateTask(ctx context.Context, nt model.NewTask) (*model.Task, error) {
	now := r.now()
	if !nt.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	var penaltyType *string
	var penaltyAmount *int64
	if nt.FailurePenalty != nil {
		pt := string(nt.FailurePenalty.Type)
		amt := nt.FailurePenalty.Amount
		penaltyType, penaltyAmount = &pt, &amt
	}

	query := `
		INSERT INTO tasks (user_id, title, description, category, difficulty, proof_type, xp_reward, status,
			created_by, ai_recommendation, is_special_challenge, failure_penalty_type, failure_penalty_amount,
			expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + taskColumns

	t, err := scanTask(r.pool.QueryRow(ctx, query,
		nt.UserID,
		nt.Title,
		nt.Description,
		nt.Category,
		nt.Difficulty,
		nt.ProofType,
		nt.XPReward,
		nt.CreatedBy,
		nt.AIRecommendation,
		nt.IsSpecialChallenge,
		penaltyType,
		penaltyAmount,
		nt.ExpiresAt,
		now,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// UpdateTask merges the supplied content fields.
func (r *TaskRepository) UpdateTask(ctx context.Context, id int64, upd model.TaskUpdate) (*model.Task, error) {
	query := `
		UPDATE tasks SET
			title             = COALESCE($2, title),
			description       = COALESCE($3, description),
			category          = COALESCE($4, category),
			ai_recommendation = COALESCE($5, ai_recommendation),
			expires_at        = COALESCE($6, expires_at)
		WHERE id = $1
		RETURNING ` + taskColumns

	t, err := scanTask(r.pool.QueryRow(ctx, query,
		id, upd.Title, upd.Description, upd.Category, upd.AIRecommendation, upd.ExpiresAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

// TransitionTask performs a conditional status update keyed on the current
// status, so concurrent callers see exactly one success.
func (r *TaskRepository) TransitionTask(ctx context.Context, id int64, from, to model.Status, at time.Time, proof *string) (*model.Task, error) {
	if err := model.CheckTransition(from, to); err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if to == model.StatusCompleted {
		completedAt = &at
	} else {
		proof = nil
	}

	query := `
		UPDATE tasks
		SET status = $3, completed_at = COALESCE($4, completed_at), proof = COALESCE($5, proof)
		WHERE id = $1 AND status = $2
		RETURNING ` + taskColumns

	t, err := scanTask(r.pool.QueryRow(ctx, query, id, from, to, completedAt, proof))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition task: %w", err)
	}

	current, getErr := r.GetTask(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, model.CheckTransition(current.Status, to)
}

func (r *TaskRepository) list(ctx context.Context, where string, args ...any) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where + ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return collectTasks(rows)
}

// TasksForUser returns every task of a user.
func (r *TaskRepository) TasksForUser(ctx context.Context, userID int64) ([]*model.Task, error) {
	return r.list(ctx, `user_id = $1`, userID)
}

// ActiveTasksForUser returns the user's active tasks.
func (r *TaskRepository) ActiveTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error) {
	return r.list(ctx, `user_id = $1 AND status = $2`, userID, model.StatusActive)
}

// CompletedTasksForUser returns the user's completed tasks.
func (r *TaskRepository) CompletedTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error) {
	return r.list(ctx, `user_id = $1 AND status = $2`, userID, model.StatusCompleted)
}

// FailedTasksForUser returns the user's failed tasks.
func (r *TaskRepository) FailedTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error) {
	return r.list(ctx, `user_id = $1 AND status = $2`, userID, model.StatusFailed)
}

// ExpiredActiveTasks returns active tasks whose deadline is before now.
func (r *TaskRepository) ExpiredActiveTasks(ctx context.Context, now time.Time) ([]*model.Task, error) {
	return r.list(ctx, `status = $1 AND expires_at < $2`, model.StatusActive, now)
}
