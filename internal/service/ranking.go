package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

const defaultLeaderboardSize = 10

// LeaderboardService ranks users overall and by XP gained per day.
type LeaderboardService struct {
	store    repository.Store
	timezone *time.Location
	now      func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService instance. Days
// start at midnight in timezone.
func NewLeaderboardService(store repository.Store, timezone *time.Location) *LeaderboardService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &LeaderboardService{store: store, timezone: timezone, now: time.Now}
}

// TopUsers retrieves the highest ranked users by level, then XP.
func (s *LeaderboardService) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	users, err := s.store.TopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	return users, nil
}

// DailyLeaders retrieves today's biggest XP earners.
func (s *LeaderboardService) DailyLeaders(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	return s.DailyLeadersForDate(ctx, s.now(), limit)
}

// DailyLeadersForDate retrieves the biggest XP earners of the day containing
// date. Punishments do not reduce the total.
func (s *LeaderboardService) DailyLeadersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	d := date.In(s.timezone)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.timezone)
	ranks, err := s.store.DailyXPLeaders(ctx, start, start.AddDate(0, 0, 1), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily leaders: %w", err)
	}
	return ranks, nil
}
