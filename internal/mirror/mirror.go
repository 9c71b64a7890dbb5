// Package mirror copies user, task and achievement records to an external
// record store. Mirroring is a side effect: callers log failures and go on.
package mirror

import (
	"context"
	"errors"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// ErrQueueFull is returned by Async when a record is dropped.
var ErrQueueFull = errors.New("mirror queue full")

// Mirror receives create/update notifications for core records.
type Mirror interface {
	SyncUser(ctx context.Context, u *model.User) error
	SyncTask(ctx context.Context, t *model.Task) error
	SyncAchievement(ctx context.Context, a *model.Achievement) error
}

// Noop discards every record.
type Noop struct{}

func (Noop) SyncUser(context.Context, *model.User) error               { return nil }
func (Noop) SyncTask(context.Context, *model.Task) error               { return nil }
func (Noop) SyncAchievement(context.Context, *model.Achievement) error { return nil }
