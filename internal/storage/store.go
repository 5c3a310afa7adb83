package storage

import (
	"context"
	"time"
)

// Store is the persistence API used by the bot.
//
// Users and preferences are written by the settings wizard and read by
// the finder; the sent-vacancies ledger is written by the sender only
// after a successful delivery. Preference categories are replaced
// wholesale, never patched.
//
// Implementations must be safe for concurrent use: the sender runs one
// goroutine per user against a shared Store.
type Store interface {
	// EnsureUser registers a user on first interaction. Idempotent.
	EnsureUser(ctx context.Context, userID int64) error
	ListUserIDs(ctx context.Context) ([]int64, error)

	Preferences(ctx context.Context, userID int64) (Preferences, error)
	ReplaceLocations(ctx context.Context, userID int64, values []string) error
	ReplaceSpecialities(ctx context.Context, userID int64, values []string) error
	ReplaceGrades(ctx context.Context, userID int64, values []string) error
	SetSalary(ctx context.Context, userID int64, salary int) error

	// WasSent reports whether (user, vacancy) is already in the ledger.
	WasSent(ctx context.Context, userID int64, vacancyID string) (bool, error)
	// RecordSent appends a ledger entry. Recording the same pair twice
	// is a no-op (upsert), so dedup semantics survive a re-record.
	RecordSent(ctx context.Context, userID int64, vacancyID string, at time.Time) error
	// LastSentAt returns the most recent delivery time for a user, or
	// ok=false if nothing was ever sent.
	LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)

	Close() error
}
