package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// AchievementRepository handles achievement persistence in PostgreSQL.
type AchievementRepository struct {
	pool *pgxpool.Pool
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{pool: pool}
}

// CreateAchievement records an unlocked achievement.
func (r *AchievementRepository) CreateAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, error) {
	const query = `
		INSERT INTO achievements (user_id, title, description, icon, xp_reward, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, user_id, title, description, icon, xp_reward, unlocked_at
	`

	var unlockedAt any
	if !a.UnlockedAt.IsZero() {
		unlockedAt = a.UnlockedAt
	}

	var out model.Achievement
	err := r.pool.QueryRow(ctx, query, a.UserID, a.Title, a.Description, a.Icon, a.XPReward, unlockedAt).Scan(
		&out.ID,
		&out.UserID,
		&out.Title,
		&out.Description,
		&out.Icon,
		&out.XPReward,
		&out.UnlockedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	return &out, nil
}

// AchievementsForUser lists a user's achievements, oldest first.
func (r *AchievementRepository) AchievementsForUser(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	const query = `
		SELECT id, user_id, title, description, icon, xp_reward, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []*model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.Icon, &a.XPReward, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
