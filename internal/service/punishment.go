package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/notify"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

// lockWait bounds how long a user-facing call waits for the owner's lock.
const lockWait = 5 * time.Second

// PunishmentOptionsFor returns the options offered when t fails. A declared
// failure penalty is the only option; otherwise options scale with the
// task's difficulty.
func PunishmentOptionsFor(t *model.Task) []model.PunishmentOption {
	if p := t.FailurePenalty; p != nil && p.Type.Valid() {
		return []model.PunishmentOption{{
			TaskID:        t.ID,
			Description:   fmt.Sprintf("Accept the declared penalty: lose %d %s", p.Amount, penaltyUnit(p.Type)),
			PenaltyType:   p.Type,
			PenaltyAmount: p.Amount,
		}}
	}

	credits := func(n int64, desc string) model.PunishmentOption {
		return model.PunishmentOption{TaskID: t.ID, Description: desc, PenaltyType: model.PenaltyCredits, PenaltyAmount: n}
	}
	xp := func(n int64, desc string) model.PunishmentOption {
		return model.PunishmentOption{TaskID: t.ID, Description: desc, PenaltyType: model.PenaltyXP, PenaltyAmount: n}
	}

	switch t.Difficulty {
	case model.DifficultyMedium:
		return []model.PunishmentOption{
			credits(25, "Pay 25 credits"),
			xp(75, "Lose 75 XP"),
			credits(40, "Pay a 40 credit fine and keep your XP intact"),
		}
	case model.DifficultyHard:
		return []model.PunishmentOption{
			credits(45, "Pay 45 credits"),
			xp(150, "Lose 150 XP"),
			credits(80, "Pay an 80 credit fine and keep your XP intact"),
		}
	default:
		return []model.PunishmentOption{
			credits(10, "Pay 10 credits"),
			xp(30, "Lose 30 XP"),
		}
	}
}

func penaltyUnit(p model.PenaltyType) string {
	if p == model.PenaltyXP {
		return "XP"
	}
	return "credits"
}

// Failure is the outcome of failing a task.
type Failure struct {
	Task    *model.Task
	Options []*model.PunishmentOption
	// Applied is set when a declared penalty was applied automatically.
	Applied *Resolution
}

// Resolution is the outcome of applying a punishment option.
type Resolution struct {
	User   *model.User
	Option *model.PunishmentOption
}

// PunishmentResolver owns the failure path of a task and the choice of its
// punishment.
type PunishmentResolver struct {
	store     repository.Store
	emitter   notify.Emitter
	locks     *lock.KeyedLock
	autoApply bool
}

// ResolverOption configures a PunishmentResolver.
type ResolverOption func(*PunishmentResolver)

// WithAutoApplyDeclared applies a task's declared penalty as soon as it
// fails instead of waiting for the user.
func WithAutoApplyDeclared(enabled bool) ResolverOption {
	return func(r *PunishmentResolver) { r.autoApply = enabled }
}

// NewPunishmentResolver creates a PunishmentResolver.
func NewPunishmentResolver(store repository.Store, emitter notify.Emitter, locks *lock.KeyedLock, opts ...ResolverOption) *PunishmentResolver {
	if emitter == nil {
		emitter = notify.Discard{}
	}
	r := &PunishmentResolver{store: store, emitter: emitter, locks: locks}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FailTask moves an active task to failed, creates its punishment options,
// locks the owner and emits TASK_FAILED. A task that is no longer active
// yields model.ErrInvalidTransition and nothing else happens.
func (r *PunishmentResolver) FailTask(ctx context.Context, taskID int64, now time.Time) (*Failure, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	r.locks.Lock(task.UserID)
	defer r.locks.Unlock(task.UserID)
	return r.failLocked(ctx, task.ID, now)
}

// failLocked expects the caller to hold the owner's lock.
func (r *PunishmentResolver) failLocked(ctx context.Context, taskID int64, now time.Time) (*Failure, error) {
	task, opts, err := r.store.FailTask(ctx, taskID, PunishmentOptionsFor)
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}

	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", task.UserID).
		Int("options", len(opts)).
		Time("at", now).
		Msg("Task failed")

	f := &Failure{Task: task, Options: opts}
	if r.autoApply && task.FailurePenalty != nil && len(opts) == 1 {
		res, err := r.applyLocked(ctx, task, opts[0])
		if err != nil {
			return nil, err
		}
		f.Applied = res
		f.Options = []*model.PunishmentOption{res.Option}
	}

	data := notify.TaskFailedData{Task: task, PunishmentOptions: f.Options}
	if f.Applied != nil {
		data.Applied = f.Applied.Option
	}
	r.emitter.Emit(ctx, notify.NewEvent(notify.TypeTaskFailed, task.UserID, data))
	return f, nil
}

// Options returns the punishment options of a task. A failed task whose
// options went missing gets them created, and its owner is locked again if
// the flag was lost.
func (r *PunishmentResolver) Options(ctx context.Context, task *model.Task) ([]*model.PunishmentOption, error) {
	var opts []*model.PunishmentOption
	err := r.locks.WithLockContext(ctx, task.UserID, lockWait, func() error {
		var err error
		opts, err = r.optionsLocked(ctx, task.ID)
		return err
	})
	return opts, err
}

func (r *PunishmentResolver) optionsLocked(ctx context.Context, taskID int64) ([]*model.PunishmentOption, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	opts, err := r.store.PunishmentsForTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load punishment options: %w", err)
	}
	if task.Status != model.StatusFailed {
		return opts, nil
	}

	if len(opts) == 0 {
		log.Warn().Int64("task_id", task.ID).Msg("Failed task has no punishment options, creating them")
		opts, err = r.store.CreatePunishments(ctx, task.ID, PunishmentOptionsFor(task))
		if err != nil {
			return nil, fmt.Errorf("failed to create punishment options: %w", err)
		}
	}
	if resolved(opts) {
		return opts, nil
	}

	user, err := r.store.GetUser(ctx, task.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsLocked {
		log.Warn().Int64("user_id", user.ID).Int64("task_id", task.ID).Msg("Unresolved failure left user unlocked, relocking")
		if _, err := r.refreshLock(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func resolved(opts []*model.PunishmentOption) bool {
	for _, o := range opts {
		if o.IsSelected {
			return true
		}
	}
	return false
}

// Apply selects optionID for a failed task of userID and charges it.
// Credits and XP floor at zero and the level is left unchanged. The user
// stays locked while any other failed task is unresolved.
func (r *PunishmentResolver) Apply(ctx context.Context, userID, taskID, optionID int64) (*Resolution, error) {
	var res *Resolution
	err := r.locks.WithLockContext(ctx, userID, lockWait, func() error {
		var err error
		res, err = r.chooseLocked(ctx, userID, taskID, optionID)
		return err
	})
	return res, err
}

func (r *PunishmentResolver) chooseLocked(ctx context.Context, userID, taskID, optionID int64) (*Resolution, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task.UserID != userID {
		return nil, ErrNotOwner
	}
	if task.Status != model.StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrTaskNotFailed, task.Status)
	}

	opt, err := r.store.GetPunishment(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load punishment option: %w", err)
	}
	if opt.TaskID != taskID {
		return nil, ErrOptionMismatch
	}
	return r.applyLocked(ctx, task, opt)
}

// ApplyDefault selects the first option of a failed task.
func (r *PunishmentResolver) ApplyDefault(ctx context.Context, taskID int64) (*Resolution, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task.Status != model.StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrTaskNotFailed, task.Status)
	}
	opts, err := r.Options(ctx, task)
	if err != nil {
		return nil, err
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("no punishment options for task %d", taskID)
	}
	return r.Apply(ctx, task.UserID, taskID, opts[0].ID)
}

func (r *PunishmentResolver) applyLocked(ctx context.Context, task *model.Task, opt *model.PunishmentOption) (*Resolution, error) {
	selected, err := r.store.SelectPunishment(ctx, opt.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPunishmentResolved) {
			return nil, ErrPunishmentResolved
		}
		return nil, fmt.Errorf("failed to select punishment: %w", err)
	}

	var xpDelta, xpassDelta int64
	switch selected.PenaltyType {
	case model.PenaltyXP:
		xpDelta = -selected.PenaltyAmount
	default:
		xpassDelta = -selected.PenaltyAmount
	}
	if _, err := r.store.AdjustResources(ctx, task.UserID, xpDelta, xpassDelta); err != nil {
		return nil, fmt.Errorf("failed to charge punishment: %w", err)
	}
	recordEntry(ctx, r.store, model.LedgerEntry{
		UserID:      task.UserID,
		Resource:    selected.PenaltyType,
		Amount:      -selected.PenaltyAmount,
		Kind:        model.LedgerPunishment,
		TaskID:      &task.ID,
		Description: &selected.Description,
	})

	user, err := r.refreshLock(ctx, task.UserID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", task.UserID).
		Str("penalty_type", string(selected.PenaltyType)).
		Int64("penalty_amount", selected.PenaltyAmount).
		Bool("still_locked", user.IsLocked).
		Msg("Punishment applied")

	return &Resolution{User: user, Option: selected}, nil
}

// refreshLock recomputes the lock flag from the failed tasks still
// awaiting a choice.
func (r *PunishmentResolver) refreshLock(ctx context.Context, userID int64) (*model.User, error) {
	n, err := r.store.UnresolvedFailedTaskCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved tasks: %w", err)
	}
	locked := n > 0
	user, err := r.store.UpdateUser(ctx, userID, model.UserUpdate{IsLocked: &locked})
	if err != nil {
		return nil, fmt.Errorf("failed to update lock: %w", err)
	}
	return user, nil
}
