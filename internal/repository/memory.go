package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// MemoryStore is an in-process Store. Each instance owns its own state.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users        map[int64]*model.User
	tasks        map[int64]*model.Task
	punishments  map[int64]*model.PunishmentOption
	achievements map[int64]*model.Achievement
	ledger       []*model.LedgerEntry

	nextUserID        int64
	nextTaskID        int64
	nextPunishmentID  int64
	nextAchievementID int64
	nextLedgerID      int64
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used for creation timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:               time.Now,
		users:             make(map[int64]*model.User),
		tasks:             make(map[int64]*model.Task),
		punishments:       make(map[int64]*model.PunishmentOption),
		achievements:      make(map[int64]*model.Achievement),
		nextUserID:        1,
		nextTaskID:        1,
		nextPunishmentID:  1,
		nextAchievementID: 1,
		nextLedgerID:      1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

func copyUser(u *model.User) *model.User {
	c := *u
	if u.LastLoginDate != nil {
		d := *u.LastLoginDate
		c.LastLoginDate = &d
	}
	return &c
}

func copyTask(t *model.Task) *model.Task {
	c := *t
	if t.AIRecommendation != nil {
		s := *t.AIRecommendation
		c.AIRecommendation = &s
	}
	if t.FailurePenalty != nil {
		p := *t.FailurePenalty
		c.FailurePenalty = &p
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	if t.Proof != nil {
		s := *t.Proof
		c.Proof = &s
	}
	return &c
}

// ---- users ----

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetUserByUsername retrieves a user by exact username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser stores a user with the initial level, credits and title.
func (s *MemoryStore) CreateUser(_ context.Context, nu model.NewUser) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == nu.Username || strings.EqualFold(u.Email, nu.Email) {
			return nil, ErrUserExists
		}
	}

	u := &model.User{
		ID:          s.nextUserID,
		Username:    nu.Username,
		Email:       nu.Email,
		DisplayName: nu.DisplayName,
		Level:       model.InitialLevel,
		XPass:       model.InitialXPass,
		Title:       model.TitleForLevel(model.InitialLevel),
		CreatedAt:   s.now(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	return copyUser(u), nil
}

// UpdateUser merges the non-nil fields of upd.
func (s *MemoryStore) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	applyUserUpdate(u, upd)
	return copyUser(u), nil
}

// AdjustResources applies both deltas, flooring each balance at zero.
func (s *MemoryStore) AdjustResources(_ context.Context, id int64, xpDelta, xpassDelta int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.XP = floorZero(u.XP + xpDelta)
	u.XPass = floorZero(u.XPass + xpassDelta)
	return copyUser(u), nil
}

// TopUsers lists users by level, then XP, then id.
func (s *MemoryStore) TopUsers(_ context.Context, limit int) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- tasks ----

// GetTask retrieves a task by id.
func (s *MemoryStore) GetTask(_ context.Context, id int64) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(t), nil
}

// CreateTask stores an active task.
func (s *MemoryStore) CreateTask(_ context.Context, nt model.NewTask) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[nt.UserID]; !ok {
		return nil, ErrUserNotFound
	}
	now := s.now()
	if !nt.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	t := &model.Task{
		ID:                 s.nextTaskID,
		UserID:             nt.UserID,
		Title:              nt.Title,
		Description:        nt.Description,
		Category:           nt.Category,
		Difficulty:         nt.Difficulty,
		ProofType:          nt.ProofType,
		XPReward:           nt.XPReward,
		Status:             model.StatusActive,
		CreatedBy:          nt.CreatedBy,
		AIRecommendation:   nt.AIRecommendation,
		IsSpecialChallenge: nt.IsSpecialChallenge,
		FailurePenalty:     nt.FailurePenalty,
		ExpiresAt:          nt.ExpiresAt,
		CreatedAt:          now,
	}
	s.nextTaskID++
	stored := copyTask(t)
	s.tasks[t.ID] = stored
	return copyTask(stored), nil
}

// UpdateTask merges the non-nil fields of upd.
func (s *MemoryStore) UpdateTask(_ context.Context, id int64, upd model.TaskUpdate) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	applyTaskUpdate(t, upd)
	return copyTask(t), nil
}

// TransitionTask moves a task from one status to another if it is still in from.
func (s *MemoryStore) TransitionTask(_ context.Context, id int64, from, to model.Status, at time.Time, proof *string) (*model.Task, error) {
	if err := model.CheckTransition(from, to); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status != from {
		return nil, model.CheckTransition(t.Status, to)
	}

	t.Status = to
	if to == model.StatusCompleted {
		done := at
		t.CompletedAt = &done
		if proof != nil {
			p := *proof
			t.Proof = &p
		}
	}
	return copyTask(t), nil
}

func (s *MemoryStore) filterTasks(match func(*model.Task) bool) []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, t := range s.tasks {
		if match(t) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TasksForUser lists every task of a user in creation order.
func (s *MemoryStore) TasksForUser(_ context.Context, userID int64) ([]*model.Task, error) {
	return s.filterTasks(func(t *model.Task) bool { return t.UserID == userID }), nil
}

// ActiveTasksForUser lists a user's active tasks.
func (s *MemoryStore) ActiveTasksForUser(_ context.Context, userID int64) ([]*model.Task, error) {
	return s.tasksWithStatus(userID, model.StatusActive), nil
}

// CompletedTasksForUser lists a user's completed tasks.
func (s *MemoryStore) CompletedTasksForUser(_ context.Context, userID int64) ([]*model.Task, error) {
	return s.tasksWithStatus(userID, model.StatusCompleted), nil
}

// FailedTasksForUser lists a user's failed tasks.
func (s *MemoryStore) FailedTasksForUser(_ context.Context, userID int64) ([]*model.Task, error) {
	return s.tasksWithStatus(userID, model.StatusFailed), nil
}

func (s *MemoryStore) tasksWithStatus(userID int64, status model.Status) []*model.Task {
	return s.filterTasks(func(t *model.Task) bool { return t.UserID == userID && t.Status == status })
}

// ExpiredActiveTasks lists active tasks whose deadline is before now.
func (s *MemoryStore) ExpiredActiveTasks(_ context.Context, now time.Time) ([]*model.Task, error) {
	return s.filterTasks(func(t *model.Task) bool { return t.IsExpired(now) }), nil
}

// ---- punishments ----

// FailTask fails an active task, adds its options and locks the owner
// under one write lock.
func (s *MemoryStore) FailTask(_ context.Context, id int64, build func(*model.Task) []model.PunishmentOption) (*model.Task, []*model.PunishmentOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil, ErrTaskNotFound
	}
	if err := model.CheckTransition(t.Status, model.StatusFailed); err != nil {
		return nil, nil, err
	}
	u, ok := s.users[t.UserID]
	if !ok {
		return nil, nil, ErrUserNotFound
	}

	t.Status = model.StatusFailed
	u.IsLocked = true
	failed := copyTask(t)
	if existing := s.punishmentsForTaskLocked(id); len(existing) > 0 {
		return failed, existing, nil
	}
	return failed, s.createPunishmentsLocked(id, build(failed)), nil
}

// CreatePunishments adds options to a task that has none.
func (s *MemoryStore) CreatePunishments(_ context.Context, taskID int64, opts []model.PunishmentOption) ([]*model.PunishmentOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, ErrTaskNotFound
	}
	if existing := s.punishmentsForTaskLocked(taskID); len(existing) > 0 {
		return existing, nil
	}
	return s.createPunishmentsLocked(taskID, opts), nil
}

func (s *MemoryStore) createPunishmentsLocked(taskID int64, opts []model.PunishmentOption) []*model.PunishmentOption {
	now := s.now()
	out := make([]*model.PunishmentOption, 0, len(opts))
	for _, o := range opts {
		p := o
		p.ID = s.nextPunishmentID
		p.TaskID = taskID
		p.IsSelected = false
		p.CreatedAt = now
		s.nextPunishmentID++
		s.punishments[p.ID] = &p
		c := p
		out = append(out, &c)
	}
	return out
}

func (s *MemoryStore) punishmentsForTaskLocked(taskID int64) []*model.PunishmentOption {
	var out []*model.PunishmentOption
	for _, p := range s.punishments {
		if p.TaskID == taskID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PunishmentsForTask lists a task's options in id order.
func (s *MemoryStore) PunishmentsForTask(_ context.Context, taskID int64) ([]*model.PunishmentOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.punishmentsForTaskLocked(taskID), nil
}

// GetPunishment retrieves an option by id.
func (s *MemoryStore) GetPunishment(_ context.Context, id int64) (*model.PunishmentOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.punishments[id]
	if !ok {
		return nil, ErrPunishmentNotFound
	}
	c := *p
	return &c, nil
}

// SelectPunishment marks an option selected unless its task already has one.
func (s *MemoryStore) SelectPunishment(_ context.Context, id int64) (*model.PunishmentOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.punishments[id]
	if !ok {
		return nil, ErrPunishmentNotFound
	}
	if s.taskResolvedLocked(p.TaskID) {
		return nil, ErrPunishmentResolved
	}
	p.IsSelected = true
	c := *p
	return &c, nil
}

func (s *MemoryStore) taskResolvedLocked(taskID int64) bool {
	for _, p := range s.punishments {
		if p.TaskID == taskID && p.IsSelected {
			return true
		}
	}
	return false
}

// UnresolvedFailedTaskCount counts failed tasks with no selected option.
func (s *MemoryStore) UnresolvedFailedTaskCount(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status == model.StatusFailed && !s.taskResolvedLocked(t.ID) {
			n++
		}
	}
	return n, nil
}

// ---- achievements ----

// CreateAchievement stores an achievement.
func (s *MemoryStore) CreateAchievement(_ context.Context, a model.Achievement) (*model.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a.UserID]; !ok {
		return nil, ErrUserNotFound
	}
	a.ID = s.nextAchievementID
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = s.now()
	}
	s.nextAchievementID++
	stored := a
	s.achievements[a.ID] = &stored
	return &a, nil
}

// AchievementsForUser lists a user's achievements, oldest first.
func (s *MemoryStore) AchievementsForUser(_ context.Context, userID int64) ([]*model.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Achievement
	for _, a := range s.achievements {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- ledger ----

// RecordEntry appends a ledger entry.
func (s *MemoryStore) RecordEntry(_ context.Context, e model.LedgerEntry) (*model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return nil, ErrUserNotFound
	}
	e.ID = s.nextLedgerID
	s.nextLedgerID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	stored := e
	s.ledger = append(s.ledger, &stored)
	return &e, nil
}

// EntriesForUser lists a user's newest entries. A limit of zero or less returns all.
func (s *MemoryStore) EntriesForUser(_ context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if e := s.ledger[i]; e.UserID == userID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// DailyXPLeaders sums XP gained in [from, to) per user, largest first.
func (s *MemoryStore) DailyXPLeaders(_ context.Context, from, to time.Time, limit int) ([]*model.DailyRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[int64]int64)
	for _, e := range s.ledger {
		if e.Resource != model.PenaltyXP || e.Amount <= 0 {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		sums[e.UserID] += e.Amount
	}
	out := make([]*model.DailyRank, 0, len(sums))
	for id, xp := range sums {
		out = append(out, &model.DailyRank{UserID: id, Username: s.users[id].Username, XPGained: xp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XPGained != out[j].XPGained {
			return out[i].XPGained > out[j].XPGained
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
