package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Anthonytesla02/Level-Up/internal/ai"
	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/notify"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t notify.Type) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	ctx      context.Context
	clock    *testClock
	store    *repository.MemoryStore
	locks    *lock.KeyedLock
	events   *recorder
	accounts *AccountService
	resolver *PunishmentResolver
	tasks    *TaskService
	quests   *QuestService
	scanner  *ExpirationScanner
}

func newTestEnv(t *testing.T, opts ...ResolverOption) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore(repository.WithClock(clock.Now))
	locks := lock.NewKeyedLock()
	events := &recorder{}

	accounts := NewAccountService(store, locks)
	resolver := NewPunishmentResolver(store, events, locks, opts...)
	tasks := NewTaskService(store, accounts, resolver, events, locks)
	tasks.SetClock(clock.Now)
	gen := ai.NewGenerator(nil, ai.Options{Now: clock.Now})

	return &testEnv{
		ctx:      context.Background(),
		clock:    clock,
		store:    store,
		locks:    locks,
		events:   events,
		accounts: accounts,
		resolver: resolver,
		tasks:    tasks,
		quests:   NewQuestService(tasks, gen),
		scanner:  NewExpirationScanner(store, resolver, WithScannerClock(clock.Now)),
	}
}

func (e *testEnv) register(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.accounts.Register(e.ctx, model.NewUser{Username: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u
}

func (e *testEnv) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := e.store.GetUser(e.ctx, id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) task(t *testing.T, id int64) *model.Task {
	t.Helper()
	task, err := e.store.GetTask(e.ctx, id)
	require.NoError(t, err)
	return task
}

// createTask creates an active task expiring after d.
func (e *testEnv) createTask(t *testing.T, userID int64, d model.Difficulty, xp int64, expiresIn time.Duration, penalty *model.Penalty) *model.Task {
	t.Helper()
	expires := e.clock.Now().Add(expiresIn)
	task, err := e.tasks.Create(e.ctx, userID, CreateTaskInput{
		Title:          "Quest " + string(d),
		Description:    "Do the thing",
		Difficulty:     d,
		XPReward:       &xp,
		ExpiresAt:      &expires,
		FailurePenalty: penalty,
	})
	require.NoError(t, err)
	return task
}

func int64Ptr(v int64) *int64 { return &v }
