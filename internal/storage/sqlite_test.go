package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vacanbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.sqlite3")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEnsureUserIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.EnsureUser(ctx, 100); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.EnsureUser(ctx, 200); err != nil {
		t.Fatal(err)
	}

	ids, err := st.ListUserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 100 || ids[1] != 200 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, 1); err != nil {
		t.Fatal(err)
	}

	// Before any settings: everything empty, salary floor zero.
	p, err := st.Preferences(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Locations) != 0 || len(p.Grades) != 0 || p.SalaryFloor != 0 {
		t.Fatalf("fresh prefs = %+v", p)
	}

	if err := st.ReplaceLocations(ctx, 1, []string{"Удаленно", "Москва (офис, удаленно)"}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceSpecialities(ctx, 1, []string{"DevOps"}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceGrades(ctx, 1, []string{"Junior-Middle", "Senior+"}); err != nil {
		t.Fatal(err)
	}
	if err := st.SetSalary(ctx, 1, 100000); err != nil {
		t.Fatal(err)
	}

	p, err = st.Preferences(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Locations) != 2 || len(p.Specialities) != 1 || len(p.Grades) != 2 || p.SalaryFloor != 100000 {
		t.Fatalf("prefs = %+v", p)
	}

	// Replace is wholesale, not additive.
	if err := st.ReplaceGrades(ctx, 1, []string{"Middle-Senior"}); err != nil {
		t.Fatal(err)
	}
	p, _ = st.Preferences(ctx, 1)
	if len(p.Grades) != 1 || p.Grades[0] != "Middle-Senior" {
		t.Fatalf("grades after replace = %v", p.Grades)
	}

	// Salary update overwrites.
	if err := st.SetSalary(ctx, 1, 200000); err != nil {
		t.Fatal(err)
	}
	p, _ = st.Preferences(ctx, 1)
	if p.SalaryFloor != 200000 {
		t.Fatalf("salary = %d", p.SalaryFloor)
	}
}

func TestLedgerDedup(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, 1); err != nil {
		t.Fatal(err)
	}

	ok, err := st.WasSent(ctx, 1, "42")
	if err != nil || ok {
		t.Fatalf("WasSent before record = %v, %v", ok, err)
	}

	now := time.Now()
	if err := st.RecordSent(ctx, 1, "42", now); err != nil {
		t.Fatal(err)
	}
	if ok, _ = st.WasSent(ctx, 1, "42"); !ok {
		t.Fatal("WasSent after record = false")
	}
	// Same pair again: upsert, no error, still one logical record.
	if err := st.RecordSent(ctx, 1, "42", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Scoped by user: another user never saw this vacancy.
	if ok, _ = st.WasSent(ctx, 2, "42"); ok {
		t.Fatal("dedup leaked across users")
	}
}

func TestLastSentAt(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := st.LastSentAt(ctx, 1); err != nil || ok {
		t.Fatalf("LastSentAt on empty ledger = ok=%v err=%v", ok, err)
	}

	early := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)
	if err := st.RecordSent(ctx, 1, "a", late); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordSent(ctx, 1, "b", early); err != nil {
		t.Fatal(err)
	}

	got, ok, err := st.LastSentAt(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("LastSentAt = ok=%v err=%v", ok, err)
	}
	if !got.Equal(late) {
		t.Fatalf("LastSentAt = %v, want %v", got, late)
	}
}

func TestStatsCounts(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []int64{1, 2, 3} {
		if err := st.EnsureUser(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.ReplaceLocations(ctx, 1, []string{"Удаленно"}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceLocations(ctx, 2, []string{"Удаленно"}); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordSent(ctx, 1, "a", now); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordSent(ctx, 1, "b", now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUsers != 3 || stats.NewUsersToday != 3 {
		t.Fatalf("user counts = %+v", stats)
	}
	if stats.SentTotal != 2 || stats.SentToday != 1 {
		t.Fatalf("sent counts = %+v", stats)
	}
	if stats.Locations["Удаленно"] != 2 {
		t.Fatalf("locations = %v", stats.Locations)
	}
	// Both deliveries land 48h apart, so they fall into the same local
	// hour bucket.
	if stats.SentByHour[now.Hour()] != 2 {
		t.Fatalf("sent_by_hour = %v", stats.SentByHour)
	}
}
