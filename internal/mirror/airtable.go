package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mehanizm/airtable"
	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Airtable table names.
const (
	TableUsers        = "Users"
	TableTasks        = "Tasks"
	TableAchievements = "Achievements"
)

// AirtableConfig configures an AirtableMirror.
type AirtableConfig struct {
	APIKey     string
	BaseID     string
	BaseURL    string
	MaxRetries uint64
	Timeout    time.Duration
}

// AirtableMirror upserts records into an Airtable base keyed by the core id.
type AirtableMirror struct {
	cfg    AirtableConfig
	client *airtable.Client
}

// NewAirtableMirror creates an AirtableMirror.
func NewAirtableMirror(cfg AirtableConfig) (*AirtableMirror, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := airtable.NewClient(cfg.APIKey)
	client.SetCustomClient(&http.Client{Timeout: cfg.Timeout})
	if err := client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")); err != nil {
		return nil, fmt.Errorf("invalid airtable base url: %w", err)
	}
	return &AirtableMirror{cfg: cfg, client: client}, nil
}

type fields = map[string]any

// permanentStatus reports HTTP statuses that retrying will not fix.
func permanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// SyncUser mirrors a user row.
func (m *AirtableMirror) SyncUser(ctx context.Context, u *model.User) error {
	f := fields{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"level":        u.Level,
		"xp":           u.XP,
		"xpass":        u.XPass,
		"title":        u.Title,
		"streak":       u.Streak,
		"is_locked":    u.IsLocked,
		"created_at":   u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLoginDate != nil {
		f["last_login_date"] = u.LastLoginDate.Format(time.RFC3339)
	}
	return m.upsert(ctx, TableUsers, u.ID, f)
}

// SyncTask mirrors a task row.
func (m *AirtableMirror) SyncTask(ctx context.Context, t *model.Task) error {
	f := fields{
		"id":                   t.ID,
		"user_id":              t.UserID,
		"title":                t.Title,
		"description":          t.Description,
		"category":             t.Category,
		"difficulty":           string(t.Difficulty),
		"proof_type":           string(t.ProofType),
		"xp_reward":            t.XPReward,
		"status":               string(t.Status),
		"created_by":           string(t.CreatedBy),
		"is_special_challenge": t.IsSpecialChallenge,
		"expires_at":           t.ExpiresAt.Format(time.RFC3339),
		"created_at":           t.CreatedAt.Format(time.RFC3339),
	}
	if t.AIRecommendation != nil {
		f["ai_recommendation"] = *t.AIRecommendation
	}
	if t.FailurePenalty != nil {
		f["failure_penalty_type"] = string(t.FailurePenalty.Type)
		f["failure_penalty_amount"] = t.FailurePenalty.Amount
	}
	if t.CompletedAt != nil {
		f["completed_at"] = t.CompletedAt.Format(time.RFC3339)
	}
	if t.Proof != nil {
		f["proof"] = *t.Proof
	}
	return m.upsert(ctx, TableTasks, t.ID, f)
}

// SyncAchievement mirrors an achievement row.
func (m *AirtableMirror) SyncAchievement(ctx context.Context, a *model.Achievement) error {
	return m.upsert(ctx, TableAchievements, a.ID, fields{
		"id":          a.ID,
		"user_id":     a.UserID,
		"title":       a.Title,
		"description": a.Description,
		"icon":        a.Icon,
		"xp_reward":   a.XPReward,
		"acquired_at": a.UnlockedAt.Format(time.RFC3339),
	})
}

// upsert writes the record in one PATCH, merging on the id field so a
// missing row is created and an existing one updated. Transient failures
// are retried with exponential backoff.
func (m *AirtableMirror) upsert(ctx context.Context, table string, id int64, f fields) error {
	records := &airtable.Records{
		Records:       []*airtable.Record{{Fields: f}},
		PerformUpsert: &airtable.PerformUpsert{FieldsToMergeOn: []string{"id"}},
	}
	tbl := m.client.GetTable(m.cfg.BaseID, table)

	operation := func() error {
		_, err := tbl.UpdateRecordsPartialContext(ctx, records)
		var statusErr *airtable.HTTPClientError
		if errors.As(err, &statusErr) && permanentStatus(statusErr.StatusCode) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = m.cfg.Timeout
	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, m.cfg.MaxRetries), ctx),
		func(err error, d time.Duration) {
			log.Warn().
				Err(err).
				Str("table", table).
				Int64("id", id).
				Dur("backoff", d).
				Msg("Airtable request failed, retrying")
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write %s record %d: %w", table, id, err)
	}
	return nil
}
