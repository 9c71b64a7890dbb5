package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

type job struct {
	kind string
	id   int64
	run  func(ctx context.Context) error
}

// Async hands records to a background worker through a bounded queue.
// Sync calls never block; when the queue is full the record is dropped.
// Errors from the wrapped Mirror are logged and swallowed.
type Async struct {
	next    Mirror
	queue   chan job
	timeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsync starts a worker that forwards to next.
func NewAsync(next Mirror, queueSize int, timeout time.Duration) *Async {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Async{
		next:    next,
		queue:   make(chan job, queueSize),
		timeout: timeout,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for j := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := j.run(ctx); err != nil {
			log.Error().Err(err).Str("kind", j.kind).Int64("id", j.id).Msg("Mirror sync failed")
		}
		cancel()
	}
}

func (a *Async) enqueue(j job) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- j:
		return nil
	default:
		log.Warn().Str("kind", j.kind).Int64("id", j.id).Msg("Mirror queue full, dropping record")
		return ErrQueueFull
	}
}

// SyncUser queues a user record.
func (a *Async) SyncUser(_ context.Context, u *model.User) error {
	c := *u
	return a.enqueue(job{kind: "user", id: u.ID, run: func(ctx context.Context) error {
		return a.next.SyncUser(ctx, &c)
	}})
}

// SyncTask queues a task record.
func (a *Async) SyncTask(_ context.Context, t *model.Task) error {
	c := *t
	return a.enqueue(job{kind: "task", id: t.ID, run: func(ctx context.Context) error {
		return a.next.SyncTask(ctx, &c)
	}})
}

// SyncAchievement queues an achievement record.
func (a *Async) SyncAchievement(_ context.Context, ach *model.Achievement) error {
	c := *ach
	return a.enqueue(job{kind: "achievement", id: ach.ID, run: func(ctx context.Context) error {
		return a.next.SyncAchievement(ctx, &c)
	}})
}

// Close stops accepting records and waits for the queue to drain.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		a.wg.Wait()
	})
}
