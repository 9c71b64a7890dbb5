package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/ai"
	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// recentTitleLimit bounds how many past titles are sent as the avoid list.
const recentTitleLimit = 20

// QuestService turns generated drafts into tasks.
type QuestService struct {
	tasks     *TaskService
	generator *ai.Generator
}

// NewQuestService creates a new QuestService instance.
func NewQuestService(tasks *TaskService, generator *ai.Generator) *QuestService {
	return &QuestService{tasks: tasks, generator: generator}
}

// Suggest returns drafts without storing them.
func (s *QuestService) Suggest(ctx context.Context, userID int64, d model.Difficulty, special bool, count int) ([]model.TaskDraft, error) {
	if err := s.tasks.ensureUnlocked(ctx, userID); err != nil {
		return nil, err
	}
	user, err := s.tasks.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	avoid, err := s.recentTitles(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := s.generator.Generate(ctx, ai.Request{
		User:       user,
		Difficulty: d,
		Special:    special,
		Count:      count,
		Avoid:      avoid,
	})
	return res.Drafts, nil
}

// Accept stores a suggested draft as an active task. The reward is clamped
// into the draft's band and a past or missing expiry is reset to 24 hours.
func (s *QuestService) Accept(ctx context.Context, userID int64, draft model.TaskDraft) (*model.Task, error) {
	draft, err := s.normalize(draft)
	if err != nil {
		return nil, err
	}
	return s.tasks.persist(ctx, userID, draft)
}

func (s *QuestService) normalize(draft model.TaskDraft) (model.TaskDraft, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return draft, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !draft.Difficulty.Valid() {
		return draft, fmt.Errorf("%w: difficulty %q", ErrInvalidInput, draft.Difficulty)
	}
	if !draft.ProofType.Valid() {
		draft.ProofType = model.ProofText
	}
	if draft.CreatedBy == "" {
		draft.CreatedBy = model.CreatedByAI
	}
	draft.XPReward = model.BandFor(draft.Difficulty).Clamp(draft.XPReward)

	now := s.tasks.now()
	if !draft.ExpiresAt.After(now) {
		draft.ExpiresAt = now.Add(model.ExpiryWindow)
	}
	return draft, nil
}

// GenerateDaily stores today's batch for a user. It returns nothing when an
// AI batch was already created today, and ErrBusy while another request for
// the same user holds its lock.
func (s *QuestService) GenerateDaily(ctx context.Context, userID int64) ([]*model.Task, error) {
	if !s.tasks.locks.TryLock(userID) {
		return nil, ErrBusy
	}
	defer s.tasks.locks.Unlock(userID)

	if err := s.tasks.ensureUnlocked(ctx, userID); err != nil {
		return nil, err
	}
	user, err := s.tasks.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	existing, err := s.tasks.store.TasksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	now := s.tasks.now()
	if !ai.ShouldGenerateToday(lastGenerated(existing), now) {
		log.Debug().Int64("user_id", userID).Msg("Daily quests already generated")
		return nil, nil
	}

	drafts := s.generator.GenerateDaily(ctx, user, titles(existing, recentTitleLimit))
	tasks := make([]*model.Task, 0, len(drafts))
	for _, d := range drafts {
		d, err := s.normalize(d)
		if err != nil {
			return tasks, err
		}
		t, err := s.tasks.persistLocked(ctx, userID, d)
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, t)
	}
	log.Info().Int64("user_id", userID).Int("count", len(tasks)).Msg("Daily quests generated")
	return tasks, nil
}

func (s *QuestService) recentTitles(ctx context.Context, userID int64) ([]string, error) {
	existing, err := s.tasks.store.TasksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return titles(existing, recentTitleLimit), nil
}

// lastGenerated returns the creation time of the newest AI task.
func lastGenerated(tasks []*model.Task) time.Time {
	var last time.Time
	for _, t := range tasks {
		if t.CreatedBy == model.CreatedByAI && t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
	}
	return last
}

// titles returns up to limit titles, newest first.
func titles(tasks []*model.Task, limit int) []string {
	out := make([]string, 0, limit)
	for i := len(tasks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, tasks[i].Title)
	}
	return out
}
