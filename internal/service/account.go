// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

// StreakMilestone is an achievement granted the first time a login streak
// reaches Days.
type StreakMilestone struct {
	Days        int
	Title       string
	Description string
	Icon        string
	XPReward    int64
}

// StreakMilestones lists the streak achievements in ascending order.
var StreakMilestones = []StreakMilestone{
	{Days: 3, Title: "On a Roll", Description: "Log in 3 days in a row", Icon: "🔥", XPReward: 50},
	{Days: 7, Title: "Week Warrior", Description: "Log in 7 days in a row", Icon: "🗓️", XPReward: 100},
	{Days: 14, Title: "Fortnight Focus", Description: "Log in 14 days in a row", Icon: "🎯", XPReward: 200},
	{Days: 30, Title: "Unstoppable", Description: "Log in 30 days in a row", Icon: "🏆", XPReward: 500},
}

// AccountService handles user accounts and progression.
type AccountService struct {
	store    repository.Store
	locks    *lock.KeyedLock
	validate *validator.Validate
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store repository.Store, locks *lock.KeyedLock) *AccountService {
	return &AccountService{
		store:    store,
		locks:    locks,
		validate: validator.New(),
	}
}

// Register creates a user with initial level, credits and title.
func (s *AccountService) Register(ctx context.Context, nu model.NewUser) (*model.User, error) {
	if err := s.validate.Struct(nu); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user, err := s.store.CreateUser(ctx, nu)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return user, nil
}

// GetUser retrieves a user by id.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// XPAward is the outcome of AwardXP.
type XPAward struct {
	User    *model.User
	LevelUp bool
}

// AwardXP adds amount XP and raises the level when a threshold is crossed.
// Levels never go down.
func (s *AccountService) AwardXP(ctx context.Context, userID, amount int64) (*XPAward, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)
	return s.awardXP(ctx, userID, amount, model.LedgerGrant, nil)
}

// awardXP expects the caller to hold the user lock.
func (s *AccountService) awardXP(ctx context.Context, userID, amount int64, kind model.LedgerKind, taskID *int64) (*XPAward, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative xp award %d", ErrInvalidInput, amount)
	}
	user, err := s.store.AdjustResources(ctx, userID, amount, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}
	recordEntry(ctx, s.store, model.LedgerEntry{
		UserID:   userID,
		Resource: model.PenaltyXP,
		Amount:   amount,
		Kind:     kind,
		TaskID:   taskID,
	})

	level := model.LevelForXP(user.XP)
	if level <= user.Level {
		return &XPAward{User: user}, nil
	}

	title := model.TitleForLevel(level)
	user, err = s.store.UpdateUser(ctx, userID, model.UserUpdate{Level: &level, Title: &title})
	if err != nil {
		return nil, fmt.Errorf("failed to update level: %w", err)
	}
	log.Info().
		Int64("user_id", userID).
		Int("level", level).
		Str("title", title).
		Msg("User levelled up")
	return &XPAward{User: user, LevelUp: true}, nil
}

// AddXPass adds amount credits. A negative amount spends credits, flooring at
// zero.
func (s *AccountService) AddXPass(ctx context.Context, userID, amount int64) (*model.User, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	user, err := s.store.AdjustResources(ctx, userID, 0, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to add xpass: %w", err)
	}
	recordEntry(ctx, s.store, model.LedgerEntry{
		UserID:   userID,
		Resource: model.PenaltyCredits,
		Amount:   amount,
		Kind:     model.LedgerGrant,
	})
	return user, nil
}

// LoginResult is the outcome of RecordLogin.
type LoginResult struct {
	User         *model.User
	Achievements []*model.Achievement
}

// RecordLogin updates the login streak: same day leaves it unchanged, the
// next calendar day extends it, and any longer gap restarts it at 1.
// Streak milestones are granted once each.
func (s *AccountService) RecordLogin(ctx context.Context, userID int64, now time.Time) (*LoginResult, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	streak := NextStreak(user.Streak, user.LastLoginDate, now)
	user, err = s.store.UpdateUser(ctx, userID, model.UserUpdate{Streak: &streak, LastLoginDate: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	res := &LoginResult{User: user}
	owned, err := s.achievementTitles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range StreakMilestones {
		if streak < m.Days || owned[m.Title] {
			continue
		}
		a, u, err := s.grantAchievement(ctx, model.Achievement{
			UserID:      userID,
			Title:       m.Title,
			Description: m.Description,
			Icon:        m.Icon,
			XPReward:    m.XPReward,
			UnlockedAt:  now,
		})
		if err != nil {
			return nil, err
		}
		res.Achievements = append(res.Achievements, a)
		res.User = u
	}
	return res, nil
}

// NextStreak computes the streak after a login at now.
func NextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	days := calendarDaysBetween(*last, now)
	switch {
	case days <= 0:
		if current < 1 {
			return 1
		}
		return current
	case days == 1:
		return current + 1
	default:
		return 1
	}
}

func calendarDaysBetween(from, to time.Time) int {
	fy, fm, fd := from.In(to.Location()).Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (s *AccountService) achievementTitles(ctx context.Context, userID int64) (map[string]bool, error) {
	list, err := s.store.AchievementsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	titles := make(map[string]bool, len(list))
	for _, a := range list {
		titles[a.Title] = true
	}
	return titles, nil
}

// GrantAchievement records an achievement and awards its XP.
func (s *AccountService) GrantAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, error) {
	if a.Title == "" {
		return nil, fmt.Errorf("%w: achievement title is required", ErrInvalidInput)
	}
	s.locks.Lock(a.UserID)
	defer s.locks.Unlock(a.UserID)
	granted, _, err := s.grantAchievement(ctx, a)
	return granted, err
}

func (s *AccountService) grantAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, *model.User, error) {
	granted, err := s.store.CreateAchievement(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to grant achievement: %w", err)
	}
	var user *model.User
	if granted.XPReward > 0 {
		award, err := s.awardXP(ctx, a.UserID, granted.XPReward, model.LedgerAchievement, nil)
		if err != nil {
			return nil, nil, err
		}
		user = award.User
	} else {
		user, err = s.store.GetUser(ctx, a.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load user: %w", err)
		}
	}
	log.Info().
		Int64("user_id", a.UserID).
		Str("achievement", granted.Title).
		Msg("Achievement unlocked")
	return granted, user, nil
}

// Achievements lists a user's achievements.
func (s *AccountService) Achievements(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	return s.store.AchievementsForUser(ctx, userID)
}

// History lists a user's most recent resource changes.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	return s.store.EntriesForUser(ctx, userID, limit)
}

// recordEntry appends to the ledger. The balance has already changed, so a
// failed write is logged and not returned.
func recordEntry(ctx context.Context, store repository.LedgerStore, e model.LedgerEntry) {
	if _, err := store.RecordEntry(ctx, e); err != nil {
		log.Error().Err(err).
			Int64("user_id", e.UserID).
			Str("kind", string(e.Kind)).
			Int64("amount", e.Amount).
			Msg("Failed to record ledger entry")
	}
}
