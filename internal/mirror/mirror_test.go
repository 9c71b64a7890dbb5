package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeAirtable struct {
	mu        sync.Mutex
	requests  []recordedRequest
	failFirst int32
	calls     atomic.Int32
}

func (f *fakeAirtable) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if f.calls.Add(1) <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"recNEW","fields":{}}]}`))
	}
}

func (f *fakeAirtable) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestMirror(t *testing.T, url string) *AirtableMirror {
	m, err := NewAirtableMirror(AirtableConfig{
		APIKey:     "key",
		BaseID:     "appBase",
		BaseURL:    url,
		MaxRetries: 3,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return m
}

func TestAirtableMirror_UpsertsOnID(t *testing.T) {
	fake := &fakeAirtable{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := newTestMirror(t, srv.URL)
	err := m.SyncTask(context.Background(), &model.Task{
		ID:         42,
		UserID:     1,
		Title:      "Cold Shower Challenge",
		Difficulty: model.DifficultyHard,
		Status:     model.StatusActive,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "/appBase/Tasks", reqs[0].Path)

	upsert := reqs[0].Body["performUpsert"].(map[string]any)
	assert.Equal(t, []any{"id"}, upsert["fieldsToMergeOn"])

	records := reqs[0].Body["records"].([]any)
	require.Len(t, records, 1)
	fields := records[0].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "Cold Shower Challenge", fields["title"])
	assert.Equal(t, "hard", fields["difficulty"])
	assert.Equal(t, float64(42), fields["id"])
}

func TestAirtableMirror_UserTable(t *testing.T) {
	fake := &fakeAirtable{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := newTestMirror(t, srv.URL)
	require.NoError(t, m.SyncUser(context.Background(), &model.User{ID: 7, Username: "sam", Level: 3}))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/appBase/Users", reqs[0].Path)
}

func TestAirtableMirror_RetriesTransientFailures(t *testing.T) {
	fake := &fakeAirtable{failFirst: 2}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := newTestMirror(t, srv.URL)
	require.NoError(t, m.SyncAchievement(context.Background(), &model.Achievement{ID: 1, UserID: 1, Title: "3-Day Streak"}))
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestAirtableMirror_PermanentFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestMirror(t, srv.URL)
	err := m.SyncUser(context.Background(), &model.User{ID: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewAirtableMirror_RejectsBadBaseURL(t *testing.T) {
	_, err := NewAirtableMirror(AirtableConfig{APIKey: "key", BaseID: "app", BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

type stubMirror struct {
	mu    sync.Mutex
	tasks []int64
	err   error
	block chan struct{}
}

func (s *stubMirror) SyncUser(context.Context, *model.User) error { return s.err }
func (s *stubMirror) SyncAchievement(context.Context, *model.Achievement) error {
	return s.err
}
func (s *stubMirror) SyncTask(_ context.Context, t *model.Task) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t.ID)
	s.mu.Unlock()
	return s.err
}

func TestAsync_ForwardsAndSwallowsErrors(t *testing.T) {
	stub := &stubMirror{err: errors.New("airtable down")}
	a := NewAsync(stub, 8, time.Second)

	for i := int64(1); i <= 3; i++ {
		assert.NoError(t, a.SyncTask(context.Background(), &model.Task{ID: i}))
	}
	assert.NoError(t, a.SyncUser(context.Background(), &model.User{ID: 1}))
	a.Close()

	assert.Equal(t, []int64{1, 2, 3}, stub.tasks)
}

func TestAsync_DropsWhenQueueFull(t *testing.T) {
	stub := &stubMirror{block: make(chan struct{})}
	a := NewAsync(stub, 1, time.Second)

	// One record is taken by the worker and blocks, one fills the queue.
	require.NoError(t, a.SyncTask(context.Background(), &model.Task{ID: 1}))
	require.Eventually(t, func() bool { return len(a.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.SyncTask(context.Background(), &model.Task{ID: 2}))

	err := a.SyncTask(context.Background(), &model.Task{ID: 3})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(stub.block)
	a.Close()
	assert.Equal(t, []int64{1, 2}, stub.tasks)

	// Closed dispatcher ignores new records.
	assert.NoError(t, a.SyncTask(context.Background(), &model.Task{ID: 4}))
}
