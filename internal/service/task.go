package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/ai"
	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/notify"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

// CreateTaskInput is a user-written task.
type CreateTaskInput struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Category    string `validate:"max=64"`
	// Difficulty is estimated from the text when empty.
	Difficulty model.Difficulty `validate:"omitempty,oneof=easy medium hard"`
	ProofType  model.ProofType  `validate:"omitempty,oneof=photo text"`
	// XPReward defaults to the bottom of the band and is clamped into it.
	XPReward *int64
	// ExpiresAt defaults to 24 hours from now.
	ExpiresAt      *time.Time
	FailurePenalty *model.Penalty
}

// TaskDetail is a task with its punishment options.
type TaskDetail struct {
	Task              *model.Task
	PunishmentOptions []*model.PunishmentOption
}

// Completion is the outcome of completing a task.
type Completion struct {
	Task    *model.Task
	User    *model.User
	XPDelta int64
	LevelUp bool
}

// TaskService handles the task lifecycle requested by users.
type TaskService struct {
	store    repository.Store
	accounts *AccountService
	resolver *PunishmentResolver
	emitter  notify.Emitter
	locks    *lock.KeyedLock
	validate *validator.Validate
	now      func() time.Time
}

// NewTaskService creates a new TaskService instance.
func NewTaskService(
	store repository.Store,
	accounts *AccountService,
	resolver *PunishmentResolver,
	emitter notify.Emitter,
	locks *lock.KeyedLock,
) *TaskService {
	if emitter == nil {
		emitter = notify.Discard{}
	}
	return &TaskService{
		store:    store,
		accounts: accounts,
		resolver: resolver,
		emitter:  emitter,
		locks:    locks,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SetClock overrides the service clock.
func (s *TaskService) SetClock(now func() time.Time) {
	s.now = now
}

// Create stores a user-written task and emits NEW_TASK.
func (s *TaskService) Create(ctx context.Context, userID int64, in CreateTaskInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if p := in.FailurePenalty; p != nil && (!p.Type.Valid() || p.Amount < 0) {
		return nil, fmt.Errorf("%w: penalty %q %d", ErrInvalidInput, p.Type, p.Amount)
	}

	now := s.now()
	draft := model.TaskDraft{
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		Difficulty:     in.Difficulty,
		ProofType:      in.ProofType,
		CreatedBy:      model.CreatedByUser,
		FailurePenalty: in.FailurePenalty,
		ExpiresAt:      now.Add(model.ExpiryWindow),
	}
	if draft.Category == "" {
		draft.Category = "personal"
	}
	if draft.ProofType == "" {
		draft.ProofType = model.ProofText
	}
	if !draft.Difficulty.Valid() {
		draft.Difficulty, draft.XPReward = ai.EstimateDifficulty(in.Title, in.Description)
	} else {
		draft.XPReward = model.BandFor(draft.Difficulty).Min
	}
	if in.XPReward != nil {
		draft.XPReward = model.BandFor(draft.Difficulty).Clamp(*in.XPReward)
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidInput, in.ExpiresAt.Format(time.RFC3339))
		}
		draft.ExpiresAt = *in.ExpiresAt
	}

	return s.persist(ctx, userID, draft)
}

// persist stores a draft for an unlocked user and emits NEW_TASK.
func (s *TaskService) persist(ctx context.Context, userID int64, draft model.TaskDraft) (*model.Task, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)
	return s.persistLocked(ctx, userID, draft)
}

func (s *TaskService) persistLocked(ctx context.Context, userID int64, draft model.TaskDraft) (*model.Task, error) {
	if err := s.ensureUnlocked(ctx, userID); err != nil {
		return nil, err
	}
	task, err := s.store.CreateTask(ctx, model.NewTask{UserID: userID, TaskDraft: draft})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", userID).
		Str("difficulty", string(task.Difficulty)).
		Str("created_by", string(task.CreatedBy)).
		Msg("Task created")
	s.emitter.Emit(ctx, notify.NewEvent(notify.TypeNewTask, userID, task))
	return task, nil
}

func (s *TaskService) ensureUnlocked(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsLocked {
		return ErrUserLocked
	}
	// The flag can trail a failure whose write was interrupted.
	n, err := s.store.UnresolvedFailedTaskCount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count unresolved tasks: %w", err)
	}
	if n > 0 {
		return ErrUserLocked
	}
	return nil
}

// ownedTask loads a task and checks its owner.
func (s *TaskService) ownedTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task.UserID != userID {
		return nil, ErrNotOwner
	}
	return task, nil
}

// Complete marks an active task completed and awards its XP. A task past
// its deadline goes down the failure path instead and ErrTaskExpired is
// returned.
func (s *TaskService) Complete(ctx context.Context, userID, taskID int64, proof string) (*Completion, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	if err := s.ensureUnlocked(ctx, userID); err != nil {
		return nil, err
	}
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := model.CheckTransition(task.Status, model.StatusCompleted); err != nil {
		return nil, err
	}

	now := s.now()
	if task.IsExpired(now) {
		if _, err := s.resolver.failLocked(ctx, task.ID, now); err != nil && !errors.Is(err, model.ErrInvalidTransition) {
			return nil, fmt.Errorf("failed to expire task: %w", err)
		}
		return nil, ErrTaskExpired
	}

	var proofPtr *string
	if p := strings.TrimSpace(proof); p != "" {
		proofPtr = &p
	}
	task, err = s.store.TransitionTask(ctx, task.ID, model.StatusActive, model.StatusCompleted, now, proofPtr)
	if err != nil {
		return nil, err
	}

	award, err := s.accounts.awardXP(ctx, userID, task.XPReward, model.LedgerTaskReward, &task.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", userID).
		Int64("xp", task.XPReward).
		Bool("level_up", award.LevelUp).
		Msg("Task completed")

	c := &Completion{Task: task, User: award.User, XPDelta: task.XPReward, LevelUp: award.LevelUp}
	s.emitter.Emit(ctx, notify.NewEvent(notify.TypeTaskCompleted, userID, notify.TaskCompletedData{
		Task:    task,
		XPDelta: c.XPDelta,
		Level:   award.User.Level,
		LevelUp: award.LevelUp,
	}))
	return c, nil
}

// Fail gives up on an active task. It takes the same path as expiry.
func (s *TaskService) Fail(ctx context.Context, userID, taskID int64) (*Failure, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	return s.resolver.failLocked(ctx, task.ID, s.now())
}

// Detail returns a task with its punishment options.
func (s *TaskService) Detail(ctx context.Context, taskID int64) (*TaskDetail, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	opts, err := s.resolver.Options(ctx, task)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: task, PunishmentOptions: opts}, nil
}

// Tasks lists every task of a user.
func (s *TaskService) Tasks(ctx context.Context, userID int64) ([]*model.Task, error) {
	return s.store.TasksForUser(ctx, userID)
}

// ActiveTasks lists a user's active tasks.
func (s *TaskService) ActiveTasks(ctx context.Context, userID int64) ([]*model.Task, error) {
	return s.store.ActiveTasksForUser(ctx, userID)
}

// CompletedTasks lists a user's completed tasks.
func (s *TaskService) CompletedTasks(ctx context.Context, userID int64) ([]*model.Task, error) {
	return s.store.CompletedTasksForUser(ctx, userID)
}

// FailedTasks lists a user's failed tasks.
func (s *TaskService) FailedTasks(ctx context.Context, userID int64) ([]*model.Task, error) {
	return s.store.FailedTasksForUser(ctx, userID)
}
