package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

const (
	defaultScanInterval = 30 * time.Second
	scanLeaseName       = "expiration-scan"
)

// ScanResult summarises one scan.
type ScanResult struct {
	Examined int
	Failed   int
	// Skipped counts tasks another actor moved out of active first.
	Skipped int
	Errors  int
}

// ExpirationScanner fails active tasks whose deadline has passed.
type ExpirationScanner struct {
	store    repository.TaskStore
	resolver *PunishmentResolver
	interval time.Duration
	lease    lock.Lease
	leaseTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ScannerOption configures an ExpirationScanner.
type ScannerOption func(*ExpirationScanner)

// WithInterval sets the tick interval of Start.
func WithInterval(d time.Duration) ScannerOption {
	return func(s *ExpirationScanner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLease makes each tick acquire a lease first so only one instance
// scans at a time.
func WithLease(l lock.Lease, ttl time.Duration) ScannerOption {
	return func(s *ExpirationScanner) {
		s.lease = l
		s.leaseTTL = ttl
	}
}

// WithScannerClock overrides the clock used by Start.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *ExpirationScanner) { s.now = now }
}

// NewExpirationScanner creates an ExpirationScanner.
func NewExpirationScanner(store repository.TaskStore, resolver *PunishmentResolver, opts ...ScannerOption) *ExpirationScanner {
	s := &ExpirationScanner{
		store:    store,
		resolver: resolver,
		interval: defaultScanInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = s.interval
	}
	return s
}

// Scan fails every active task that expired before now. Running it again
// with the same now finds nothing.
func (s *ExpirationScanner) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	var res ScanResult

	tasks, err := s.store.ExpiredActiveTasks(ctx, now)
	if err != nil {
		return res, err
	}

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Examined++

		_, err := s.resolver.FailTask(ctx, t.ID, now)
		switch {
		case err == nil:
			res.Failed++
		case errors.Is(err, model.ErrInvalidTransition):
			res.Skipped++
		default:
			res.Errors++
			log.Error().Err(err).Int64("task_id", t.ID).Msg("Failed to expire task")
		}
	}

	if res.Examined > 0 {
		log.Info().
			Int("examined", res.Examined).
			Int("failed", res.Failed).
			Int("skipped", res.Skipped).
			Int("errors", res.Errors).
			Msg("Expiration scan finished")
	}
	return res, nil
}

// Start scans once and then on every tick until Stop or ctx is done.
func (s *ExpirationScanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	log.Info().Dur("interval", s.interval).Bool("lease", s.lease != nil).Msg("Starting expiration scanner")
	go s.run(ctx, s.done)
}

// Stop ends the loop started by Start and waits for the running scan.
func (s *ExpirationScanner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("Expiration scanner stopped")
}

func (s *ExpirationScanner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ExpirationScanner) tick(ctx context.Context) {
	if s.lease != nil {
		release, err := s.lease.Acquire(ctx, scanLeaseName, s.leaseTTL)
		if errors.Is(err, lock.ErrLeaseHeld) {
			log.Debug().Msg("Expiration scan lease held elsewhere, skipping tick")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to acquire expiration scan lease")
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("Failed to release expiration scan lease")
			}
		}()
	}

	if _, err := s.Scan(ctx, s.now()); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Expiration scan failed")
	}
}
