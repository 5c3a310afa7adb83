// Package finder composes preferences, the dedup ledger and the job
// source into "candidate postings for one user".
package finder

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"vacanbot/internal/search"
	"vacanbot/internal/source/hh"
	"vacanbot/internal/storage"
	"vacanbot/pkg/logx"
)

var ErrInvalidUser = errors.New("finder: invalid user id")

// PreferenceStore is the read side of the user settings.
type PreferenceStore interface {
	Preferences(ctx context.Context, userID int64) (storage.Preferences, error)
}

// Ledger is the slice of the sent-vacancies ledger the finder needs:
// the most recent delivery time seeds the search window.
type Ledger interface {
	LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error)
}

// Source runs one query against the job board.
type Source interface {
	FetchAll(ctx context.Context, params url.Values) hh.Result
}

// DefaultLookback is the first-run search window for users with no
// delivery history yet.
const DefaultLookback = 10 * time.Minute

type Finder struct {
	prefs   PreferenceStore
	ledger  Ledger
	source  Source
	catalog search.Catalog

	// lookback bounds the first query for a user with no delivery
	// history; "all time" would flood both the API and the user.
	mu       sync.RWMutex
	lookback time.Duration

	log logx.Logger
	now func() time.Time
}

func New(prefs PreferenceStore, ledger Ledger, source Source, catalog search.Catalog, lookback time.Duration, log logx.Logger) *Finder {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Finder{
		prefs:    prefs,
		ledger:   ledger,
		source:   source,
		catalog:  catalog,
		lookback: lookback,
		log:      log,
		now:      time.Now,
	}
}

// Find returns the candidate vacancies for one user: one query per
// selected grade (the backend cannot OR experience buckets in a single
// call), results concatenated in grade order. Cross-grade duplicates
// are possible here; the sender dedups against the ledger anyway.
// Queries that soft-fail contribute nothing.
func (f *Finder) Find(ctx context.Context, userID int64) ([]hh.Vacancy, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}

	prefs, err := f.prefs.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	since, err := f.since(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []hh.Vacancy
	for _, grade := range prefs.Grades {
		params := f.catalog.Build(prefs.Locations, prefs.Specialities, grade, prefs.SalaryFloor, since)
		res := f.source.FetchAll(ctx, params)
		if res.Failed() {
			f.log.Warn("vacancy query soft-failed",
				logx.Int64("user", userID), logx.String("grade", grade), logx.Err(res.Err))
			continue
		}
		if res.Truncated {
			f.log.Warn("vacancy query truncated",
				logx.Int64("user", userID), logx.String("grade", grade), logx.Int("got", len(res.Vacancies)))
		}
		out = append(out, res.Vacancies...)
	}
	return out, nil
}

// SetLookback swaps the first-run window; used by config hot reload.
func (f *Finder) SetLookback(d time.Duration) {
	if d <= 0 {
		d = DefaultLookback
	}
	f.mu.Lock()
	f.lookback = d
	f.mu.Unlock()
}

// since derives the query window start: the user's most recent
// delivery if any, else a fixed lookback from now.
func (f *Finder) since(ctx context.Context, userID int64) (time.Time, error) {
	last, ok, err := f.ledger.LastSentAt(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return last, nil
	}
	f.mu.RLock()
	lb := f.lookback
	f.mu.RUnlock()
	return f.now().Add(-lb), nil
}
