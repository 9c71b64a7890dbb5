// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound           = errors.New("not found")
	ErrUserNotFound       = wrapNotFound("user not found")
	ErrTaskNotFound       = wrapNotFound("task not found")
	ErrPunishmentNotFound = wrapNotFound("punishment option not found")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidExpiry      = errors.New("task expiry must be after creation time")
	ErrPunishmentResolved = errors.New("punishment already resolved for task")
)

type notFoundError struct{ msg string }

func wrapNotFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string        { return e.msg }
func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// UserStore persists users.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u model.NewUser) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	// AdjustResources adds the deltas to xp and xpass atomically, flooring
	// both at zero.
	AdjustResources(ctx context.Context, id int64, xpDelta, xpassDelta int64) (*model.User, error)
	// TopUsers orders users by level, then xp, then id.
	TopUsers(ctx context.Context, limit int) ([]*model.User, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	CreateTask(ctx context.Context, t model.NewTask) (*model.Task, error)
	UpdateTask(ctx context.Context, id int64, upd model.TaskUpdate) (*model.Task, error)
	// TransitionTask moves a task from one status to another only if its
	// current status is from. It returns model.ErrInvalidTransition otherwise.
	TransitionTask(ctx context.Context, id int64, from, to model.Status, at time.Time, proof *string) (*model.Task, error)
	TasksForUser(ctx context.Context, userID int64) ([]*model.Task, error)
	ActiveTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error)
	CompletedTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error)
	FailedTasksForUser(ctx context.Context, userID int64) ([]*model.Task, error)
	// ExpiredActiveTasks returns every active task whose deadline is before now.
	ExpiredActiveTasks(ctx context.Context, now time.Time) ([]*model.Task, error)
}

// PunishmentStore persists punishment options.
type PunishmentStore interface {
	// FailTask moves an active task to failed, stores the options build
	// returns unless the task already has some, and locks the owner, as one
	// unit. A task that is not active yields model.ErrInvalidTransition and
	// nothing is written.
	FailTask(ctx context.Context, id int64, build func(*model.Task) []model.PunishmentOption) (*model.Task, []*model.PunishmentOption, error)
	// CreatePunishments stores options for a task that has none. When the
	// task already has options they are returned unchanged.
	CreatePunishments(ctx context.Context, taskID int64, opts []model.PunishmentOption) ([]*model.PunishmentOption, error)
	PunishmentsForTask(ctx context.Context, taskID int64) ([]*model.PunishmentOption, error)
	GetPunishment(ctx context.Context, id int64) (*model.PunishmentOption, error)
	// SelectPunishment marks an option selected unless an option of the same
	// task already is, in which case it returns ErrPunishmentResolved.
	SelectPunishment(ctx context.Context, id int64) (*model.PunishmentOption, error)
	// UnresolvedFailedTaskCount counts failed tasks of a user with no
	// selected option.
	UnresolvedFailedTaskCount(ctx context.Context, userID int64) (int, error)
}

// AchievementStore persists achievements.
type AchievementStore interface {
	CreateAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, error)
	AchievementsForUser(ctx context.Context, userID int64) ([]*model.Achievement, error)
}

// LedgerStore records resource changes.
type LedgerStore interface {
	RecordEntry(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, error)
	// EntriesForUser returns the newest entries first.
	EntriesForUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)
	// DailyXPLeaders sums positive xp entries created in [from, to) per user,
	// highest first.
	DailyXPLeaders(ctx context.Context, from, to time.Time, limit int) ([]*model.DailyRank, error)
}

// Store is the persistence surface the services depend on.
type Store interface {
	UserStore
	TaskStore
	PunishmentStore
	AchievementStore
	LedgerStore
}

func applyUserUpdate(u *model.User, upd model.UserUpdate) {
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Level != nil {
		u.Level = *upd.Level
	}
	if upd.Title != nil {
		u.Title = *upd.Title
	}
	if upd.Streak != nil {
		u.Streak = *upd.Streak
	}
	if upd.IsLocked != nil {
		u.IsLocked = *upd.IsLocked
	}
	if upd.LastLoginDate != nil {
		d := *upd.LastLoginDate
		u.LastLoginDate = &d
	}
}

func applyTaskUpdate(t *model.Task, upd model.TaskUpdate) {
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.AIRecommendation != nil {
		s := *upd.AIRecommendation
		t.AIRecommendation = &s
	}
	if upd.ExpiresAt != nil {
		t.ExpiresAt = *upd.ExpiresAt
	}
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
