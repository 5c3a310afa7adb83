// Package sender runs the delivery loop: every tick it fans out over
// all registered users, finds fresh vacancies for each, filters them
// against the sent-vacancies ledger and delivers the rest.
package sender

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vacanbot/internal/source/hh"
	"vacanbot/pkg/logx"
)

// Delivery is the chat transport. Implementations should return an
// error for transport failures (rate limit, blocked user, network);
// the sender skips the posting and moves on.
type Delivery interface {
	SendVacancy(ctx context.Context, userID int64, v hh.Vacancy) error
}

// Finder produces the candidate vacancies for one user.
type Finder interface {
	Find(ctx context.Context, userID int64) ([]hh.Vacancy, error)
}

// Ledger is the dedup record of already-delivered postings. WasSent
// is checked per posting; RecordSent is called only after a successful
// delivery, so a crash between the two re-sends at most once.
type Ledger interface {
	WasSent(ctx context.Context, userID int64, vacancyID string) (bool, error)
	RecordSent(ctx context.Context, userID int64, vacancyID string, at time.Time) error
}

// UserDirectory lists the users to fan out over.
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Config holds the loop tunables. Zero fields fall back to defaults.
type Config struct {
	Interval    time.Duration // sleep between ticks, default 10s
	FindTimeout time.Duration // per-user find phase, default 30s
	SendTimeout time.Duration // per message, default 10s

	// MaxConcurrentUsers bounds how many users are in the finding or
	// sending phase at once. Default 20.
	MaxConcurrentUsers int

	// MessageDelay is the minimum spacing between outgoing vacancy
	// messages, enforced globally. 0 disables spacing.
	MessageDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.FindTimeout <= 0 {
		c.FindTimeout = 30 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.MaxConcurrentUsers <= 0 {
		c.MaxConcurrentUsers = 20
	}
	return c
}

// Service is the fan-out sender. Start it once with Run; it loops for
// the life of the process. Per-tick errors never end the loop.
type Service struct {
	users    UserDirectory
	finder   Finder
	ledger   Ledger
	delivery Delivery
	log      logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	// Test hooks. Defaults are time.Now and a timer-based sleep.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(users UserDirectory, finder Finder, ledger Ledger, delivery Delivery, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		users:    users,
		finder:   finder,
		ledger:   ledger,
		delivery: delivery,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	s.applyLocked(cfg.withDefaults())
	return s
}

// Apply swaps the loop tunables. Takes effect at the next tick (the
// semaphore is sized per tick) and at the next send (the limiter is
// snapshotted per send).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(cfg.withDefaults())
}

func (s *Service) applyLocked(cfg Config) {
	if s.cfg.MessageDelay != cfg.MessageDelay || s.limiter == nil {
		if cfg.MessageDelay > 0 {
			s.limiter = rate.NewLimiter(rate.Every(cfg.MessageDelay), 1)
		} else {
			s.limiter = nil
		}
	}
	s.cfg = cfg
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// Run executes ticks until ctx is cancelled. It always returns nil:
// cancellation is the only exit and it is not an error.
func (s *Service) Run(ctx context.Context) error {
	cfg, _ := s.snapshot()
	s.log.Info("sender started",
		logx.Duration("interval", cfg.Interval),
		logx.Int("max_concurrent_users", cfg.MaxConcurrentUsers))

	for {
		s.tick(ctx)
		cfg, _ = s.snapshot()
		if err := s.sleep(ctx, cfg.Interval); err != nil {
			s.log.Info("sender stopped")
			return nil
		}
	}
}

// tick processes every user once. The user list is snapshotted at the
// start; users registered mid-tick wait for the next one. All per-user
// goroutines are joined before tick returns, so no work ever leaks
// into the next interval.
func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, limiter := s.snapshot()

	users, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.log.Error("listing users failed; skipping tick", logx.Err(err))
		return
	}
	if len(users) == 0 {
		return
	}

	sem := make(chan struct{}, cfg.MaxConcurrentUsers)
	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			s.processUser(ctx, cfg, limiter, userID)
		}(id)
	}
	wg.Wait()
}

// processUser runs find-then-send for one user. Any failure here is
// isolated: it abandons at most this user's remaining work for the
// tick and never touches sibling users.
func (s *Service) processUser(ctx context.Context, cfg Config, limiter *rate.Limiter, userID int64) {
	fctx, cancel := context.WithTimeout(ctx, cfg.FindTimeout)
	vacancies, err := s.finder.Find(fctx, userID)
	cancel()
	if err != nil {
		s.log.Warn("find failed; user skipped this tick", logx.Int64("user", userID), logx.Err(err))
		return
	}
	if len(vacancies) == 0 {
		return
	}

	sent := 0
	for _, v := range vacancies {
		if ctx.Err() != nil {
			return
		}

		seen, err := s.ledger.WasSent(ctx, userID, v.ID)
		if err != nil {
			// Without a dedup answer, sending risks a duplicate; skip.
			s.log.Warn("dedup check failed; posting skipped", logx.Int64("user", userID), logx.String("vacancy", v.ID), logx.Err(err))
			continue
		}
		if seen {
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err = s.delivery.SendVacancy(sctx, userID, v)
		cancel()
		if err != nil {
			s.log.Warn("delivery failed; posting skipped", logx.Int64("user", userID), logx.String("vacancy", v.ID), logx.Err(err))
			continue
		}

		// Record strictly after a successful send. A failure here
		// means at most one duplicate next tick, which is accepted.
		if err := s.ledger.RecordSent(ctx, userID, v.ID, s.now()); err != nil {
			s.log.Error("ledger record failed", logx.Int64("user", userID), logx.String("vacancy", v.ID), logx.Err(err))
		}
		sent++
	}
	if sent > 0 {
		s.log.Info("vacancies delivered", logx.Int64("user", userID), logx.Int("count", sent))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
