package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/mirror"
	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Mirrored forwards successful user, task and achievement writes to a
// mirror. Mirror errors are logged and never change the result of the
// primary write.
type Mirrored struct {
	Store
	mirror mirror.Mirror
}

// NewMirrored wraps a Store.
func NewMirrored(store Store, m mirror.Mirror) *Mirrored {
	return &Mirrored{Store: store, mirror: m}
}

func (s *Mirrored) user(ctx context.Context, u *model.User, err error) (*model.User, error) {
	if err == nil {
		if mErr := s.mirror.SyncUser(ctx, u); mErr != nil {
			log.Warn().Err(mErr).Int64("user_id", u.ID).Msg("Failed to mirror user")
		}
	}
	return u, err
}

func (s *Mirrored) task(ctx context.Context, t *model.Task, err error) (*model.Task, error) {
	if err == nil {
		if mErr := s.mirror.SyncTask(ctx, t); mErr != nil {
			log.Warn().Err(mErr).Int64("task_id", t.ID).Msg("Failed to mirror task")
		}
	}
	return t, err
}

func (s *Mirrored) CreateUser(ctx context.Context, u model.NewUser) (*model.User, error) {
	created, err := s.Store.CreateUser(ctx, u)
	return s.user(ctx, created, err)
}

func (s *Mirrored) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	u, err := s.Store.UpdateUser(ctx, id, upd)
	return s.user(ctx, u, err)
}

func (s *Mirrored) AdjustResources(ctx context.Context, id int64, xpDelta, xpassDelta int64) (*model.User, error) {
	u, err := s.Store.AdjustResources(ctx, id, xpDelta, xpassDelta)
	return s.user(ctx, u, err)
}

func (s *Mirrored) CreateTask(ctx context.Context, t model.NewTask) (*model.Task, error) {
	created, err := s.Store.CreateTask(ctx, t)
	return s.task(ctx, created, err)
}

func (s *Mirrored) UpdateTask(ctx context.Context, id int64, upd model.TaskUpdate) (*model.Task, error) {
	t, err := s.Store.UpdateTask(ctx, id, upd)
	return s.task(ctx, t, err)
}

func (s *Mirrored) TransitionTask(ctx context.Context, id int64, from, to model.Status, at time.Time, proof *string) (*model.Task, error) {
	t, err := s.Store.TransitionTask(ctx, id, from, to, at, proof)
	return s.task(ctx, t, err)
}

func (s *Mirrored) CreateAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, error) {
	created, err := s.Store.CreateAchievement(ctx, a)
	if err == nil {
		if mErr := s.mirror.SyncAchievement(ctx, created); mErr != nil {
			log.Warn().Err(mErr).Int64("achievement_id", created.ID).Msg("Failed to mirror achievement")
		}
	}
	return created, err
}

func (s *Mirrored) FailTask(ctx context.Context, id int64, build func(*model.Task) []model.PunishmentOption) (*model.Task, []*model.PunishmentOption, error) {
	t, opts, err := s.Store.FailTask(ctx, id, build)
	if err != nil {
		return nil, nil, err
	}
	s.task(ctx, t, nil)
	if u, uErr := s.Store.GetUser(ctx, t.UserID); uErr == nil {
		s.user(ctx, u, nil)
	}
	return t, opts, nil
}
