package storage

import (
	"time"
)

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// Preferences is a single-pass read of one user's search settings.
// Category slices may be empty; SalaryFloor is 0 when the user has not
// set a salary yet.
type Preferences struct {
	Locations    []string
	Specialities []string
	Grades       []string
	SalaryFloor  int
}

// Stats is the analytics snapshot input. Counts are computed by the
// store so the analytics job never walks raw rows.
type Stats struct {
	TotalUsers    int            `json:"total_users"`
	NewUsersToday int            `json:"new_users_today"`
	SentTotal     int            `json:"sent_total"`
	SentToday     int            `json:"sent_today"`
	Locations     map[string]int `json:"locations"`
	Specialities  map[string]int `json:"specialities"`
	Grades        map[string]int `json:"grades"`

	// SentByHour buckets all deliveries by local hour of day (0-23).
	SentByHour map[int]int `json:"sent_by_hour"`
}
