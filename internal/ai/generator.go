// Package ai produces task drafts from a language model, falling back to a
// curated pool whenever the model is unavailable, slow, or returns content
// that does not validate.
package ai

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// MaxCount caps how many drafts a single request may ask for.
const MaxCount = 5

// Daily batch shape.
const (
	DailyPerTier   = 2
	DailySpecials  = 1
	defaultTimeout = 20 * time.Second
)

// Request describes one generation call.
type Request struct {
	User       *model.User
	Difficulty model.Difficulty
	Special    bool
	Count      int
	// Avoid lists recent titles the model should not repeat.
	Avoid []string
}

// Source reports where a batch came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Result is the outcome of one generation call.
type Result struct {
	Drafts []model.TaskDraft
	Source Source
}

// Options configures a Generator.
type Options struct {
	Timeout     time.Duration
	Temperature float64
	Now         func() time.Time
}

// Generator creates task drafts. It never returns an error; every failure
// of the completer resolves to the fallback pool.
type Generator struct {
	completer   Completer
	timeout     time.Duration
	temperature float64
	now         func() time.Time
	validate    *validator.Validate
}

// NewGenerator creates a Generator. A nil completer means no credentials
// are configured and every call uses the fallback pool.
func NewGenerator(c Completer, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		completer:   c,
		timeout:     opts.Timeout,
		temperature: opts.Temperature,
		now:         opts.Now,
		validate:    validator.New(),
	}
}

// resolveDifficulty picks a tier for unspecified requests, rotating by day.
// Special challenges rotate between medium and hard.
func resolveDifficulty(d model.Difficulty, special bool, now time.Time) model.Difficulty {
	if d.Valid() {
		return d
	}
	tiers := model.Difficulties()
	if special {
		return tiers[1+now.YearDay()%2]
	}
	return tiers[now.YearDay()%len(tiers)]
}

type completion struct {
	content string
	err     error
}

// Generate returns drafts for req stamped with a 24 hour expiry.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	now := g.now()
	d := resolveDifficulty(req.Difficulty, req.Special, now)
	count := req.Count
	if count <= 0 {
		count = 1
	}
	if count > MaxCount {
		count = MaxCount
	}

	drafts, source := g.fromModel(ctx, req, d, count, now)
	if len(drafts) < count {
		drafts = fillFromPool(drafts, d, req.Special, count, now.YearDay(), req.Avoid)
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}

	expires := now.Add(model.ExpiryWindow)
	for i := range drafts {
		drafts[i].Difficulty = d
		drafts[i].CreatedBy = model.CreatedByAI
		drafts[i].IsSpecialChallenge = req.Special
		drafts[i].ExpiresAt = expires
	}

	log.Debug().
		Str("difficulty", string(d)).
		Bool("special", req.Special).
		Int("count", len(drafts)).
		Str("source", string(source)).
		Msg("Generated task drafts")

	return Result{Drafts: drafts, Source: source}
}

// fromModel asks the completer for drafts. The call runs in its own
// goroutine; when the timeout fires first the reply is discarded.
func (g *Generator) fromModel(ctx context.Context, req Request, d model.Difficulty, count int, now time.Time) ([]model.TaskDraft, Source) {
	if g.completer == nil {
		return nil, SourceFallback
	}

	prompt := buildPrompt(req, d, count, g.temperature)
	results := make(chan completion, 1)
	go func() {
		content, err := g.completer.Complete(context.WithoutCancel(ctx), prompt)
		results <- completion{content: content, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var res completion
	select {
	case res = <-results:
	case <-timer.C:
		log.Warn().Dur("timeout", g.timeout).Str("difficulty", string(d)).Msg("Task generation timed out, using fallback")
		return nil, SourceFallback
	case <-ctx.Done():
		return nil, SourceFallback
	}

	if res.err != nil {
		log.Warn().Err(res.err).Str("difficulty", string(d)).Msg("Task generation failed, using fallback")
		return nil, SourceFallback
	}

	drafts, err := parseReply(g.validate, res.content, d)
	if err != nil {
		log.Warn().Err(err).Str("difficulty", string(d)).Msg("Task generation reply rejected, using fallback")
		return nil, SourceFallback
	}
	return drafts, SourceModel
}

// fillFromPool tops drafts up to count from the fallback pool. Titles in
// avoid are used only when the rest of the pool runs out; a title never
// appears twice.
func fillFromPool(drafts []model.TaskDraft, d model.Difficulty, special bool, count, seed int, avoid []string) []model.TaskDraft {
	picked := make(map[string]bool, count)
	for _, dr := range drafts {
		picked[dr.Title] = true
	}

	skip := avoidSet(avoid)
	for title := range picked {
		skip[title] = true
	}
	drafts = append(drafts, fromPool(d, special, count-len(drafts), seed, skip)...)
	if len(drafts) >= count {
		return drafts
	}

	for _, dr := range drafts {
		picked[dr.Title] = true
	}
	return append(drafts, fromPool(d, special, count-len(drafts), seed, picked)...)
}

func avoidSet(titles []string) map[string]bool {
	set := make(map[string]bool, len(titles))
	for _, t := range titles {
		set[t] = true
	}
	return set
}

// GenerateDaily builds the daily batch: DailyPerTier drafts for each tier
// plus DailySpecials special challenges. Tiers are generated concurrently and
// each falls back on its own.
func (g *Generator) GenerateDaily(ctx context.Context, user *model.User, avoid []string) []model.TaskDraft {
	tiers := model.Difficulties()
	slots := make([][]model.TaskDraft, len(tiers)+1)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, d := range tiers {
		i, d := i, d
		eg.Go(func() error {
			slots[i] = g.Generate(egCtx, Request{User: user, Difficulty: d, Count: DailyPerTier, Avoid: avoid}).Drafts
			return nil
		})
	}
	eg.Go(func() error {
		slots[len(tiers)] = g.Generate(egCtx, Request{User: user, Special: true, Count: DailySpecials, Avoid: avoid}).Drafts
		return nil
	})
	_ = eg.Wait()

	var out []model.TaskDraft
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// ShouldGenerateToday reports whether last falls on an earlier calendar day
// than now, in now's location. A zero last always generates.
func ShouldGenerateToday(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly != ny || lm != nm || ld != nd
}
