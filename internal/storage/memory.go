package storage

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a map-backed Store. It backs tests and lets the bot
// run without a database file (storage.path left empty is still an
// error for the real bot; this is constructed explicitly).
type memoryStore struct {
	mu sync.RWMutex

	users  map[int64]time.Time
	prefs  map[int64]Preferences
	salary map[int64]int
	sent   map[int64]map[string]time.Time
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		users:  map[int64]time.Time{},
		prefs:  map[int64]Preferences{},
		salary: map[int64]int{},
		sent:   map[int64]map[string]time.Time{},
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) EnsureUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		m.users[userID] = time.Now()
	}
	return nil
}

func (m *memoryStore) ListUserIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryStore) Preferences(_ context.Context, userID int64) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.prefs[userID]
	p.SalaryFloor = m.salary[userID]
	return Preferences{
		Locations:    append([]string(nil), p.Locations...),
		Specialities: append([]string(nil), p.Specialities...),
		Grades:       append([]string(nil), p.Grades...),
		SalaryFloor:  p.SalaryFloor,
	}, nil
}

func (m *memoryStore) ReplaceLocations(_ context.Context, userID int64, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prefs[userID]
	p.Locations = append([]string(nil), values...)
	m.prefs[userID] = p
	return nil
}

func (m *memoryStore) ReplaceSpecialities(_ context.Context, userID int64, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prefs[userID]
	p.Specialities = append([]string(nil), values...)
	m.prefs[userID] = p
	return nil
}

func (m *memoryStore) ReplaceGrades(_ context.Context, userID int64, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prefs[userID]
	p.Grades = append([]string(nil), values...)
	m.prefs[userID] = p
	return nil
}

func (m *memoryStore) SetSalary(_ context.Context, userID int64, salary int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salary[userID] = salary
	return nil
}

func (m *memoryStore) WasSent(_ context.Context, userID int64, vacancyID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sent[userID][vacancyID]
	return ok, nil
}

func (m *memoryStore) RecordSent(_ context.Context, userID int64, vacancyID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.IsZero() {
		at = time.Now()
	}
	byUser := m.sent[userID]
	if byUser == nil {
		byUser = map[string]time.Time{}
		m.sent[userID] = byUser
	}
	if _, ok := byUser[vacancyID]; !ok {
		byUser[vacancyID] = at
	}
	return nil
}

func (m *memoryStore) LastSentAt(_ context.Context, userID int64) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last time.Time
	for _, at := range m.sent[userID] {
		if at.After(last) {
			last = at
		}
	}
	return last, !last.IsZero(), nil
}

func (m *memoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if now.IsZero() {
		now = time.Now()
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	st := Stats{
		Locations:    map[string]int{},
		Specialities: map[string]int{},
		Grades:       map[string]int{},
		SentByHour:   map[int]int{},
	}
	st.TotalUsers = len(m.users)
	for _, created := range m.users {
		if !created.Before(dayStart) {
			st.NewUsersToday++
		}
	}
	for _, byUser := range m.sent {
		st.SentTotal += len(byUser)
		for _, at := range byUser {
			if !at.Before(dayStart) {
				st.SentToday++
			}
			st.SentByHour[at.Local().Hour()]++
		}
	}
	for _, p := range m.prefs {
		for _, v := range p.Locations {
			st.Locations[v]++
		}
		for _, v := range p.Specialities {
			st.Specialities[v]++
		}
		for _, v := range p.Grades {
			st.Grades[v]++
		}
	}
	return st, nil
}
