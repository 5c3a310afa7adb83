package finder

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"vacanbot/internal/search"
	"vacanbot/internal/source/hh"
	"vacanbot/internal/storage"
	"vacanbot/pkg/logx"
)

type fakePrefs struct {
	prefs storage.Preferences
	err   error
}

func (f fakePrefs) Preferences(context.Context, int64) (storage.Preferences, error) {
	return f.prefs, f.err
}

type fakeLedger struct {
	last time.Time
	ok   bool
}

func (f fakeLedger) LastSentAt(context.Context, int64) (time.Time, bool, error) {
	return f.last, f.ok, nil
}

type fakeSource struct {
	queries []url.Values
	results map[string]hh.Result // keyed by experience value, "" for default
}

func (f *fakeSource) FetchAll(_ context.Context, params url.Values) hh.Result {
	f.queries = append(f.queries, params)
	if r, ok := f.results[params.Get("experience")]; ok {
		return r
	}
	return hh.Result{}
}

func newTestFinder(prefs fakePrefs, ledger fakeLedger, src *fakeSource) *Finder {
	f := New(prefs, ledger, src, search.DefaultCatalog(), 10*time.Minute, logx.Nop())
	f.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFindRejectsZeroUser(t *testing.T) {
	t.Parallel()
	f := newTestFinder(fakePrefs{}, fakeLedger{}, &fakeSource{})
	if _, err := f.Find(context.Background(), 0); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("err = %v, want ErrInvalidUser", err)
	}
}

func TestFindIssuesOneQueryPerGrade(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	f := newTestFinder(fakePrefs{prefs: storage.Preferences{
		Locations:    []string{"Удаленно"},
		Specialities: []string{"DevOps"},
		Grades:       []string{"Junior-Middle", "Senior+"},
		SalaryFloor:  100000,
	}}, fakeLedger{}, src)

	if _, err := f.Find(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	if len(src.queries) != 2 {
		t.Fatalf("queries = %d, want 2", len(src.queries))
	}

	q0, q1 := src.queries[0], src.queries[1]
	if q0.Get("experience") != "between1And3" || q1.Get("experience") != "moreThan6" {
		t.Fatalf("experience = %q, %q", q0.Get("experience"), q1.Get("experience"))
	}
	// Everything but experience is identical across the fan-out.
	for _, key := range []string{"work_format", "professional_role", "salary", "date_from"} {
		if q0.Get(key) != q1.Get(key) {
			t.Fatalf("%s differs: %q vs %q", key, q0.Get(key), q1.Get(key))
		}
	}
}

func TestFindConcatenatesAcrossGrades(t *testing.T) {
	t.Parallel()
	src := &fakeSource{results: map[string]hh.Result{
		"between1And3": {Vacancies: []hh.Vacancy{{ID: "1"}, {ID: "2"}}},
		"moreThan6":    {Vacancies: []hh.Vacancy{{ID: "3"}}},
	}}
	f := newTestFinder(fakePrefs{prefs: storage.Preferences{
		Grades: []string{"Junior-Middle", "Senior+"},
	}}, fakeLedger{}, src)

	got, err := f.Find(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "1" || got[2].ID != "3" {
		t.Fatalf("got %v", got)
	}
}

func TestFindSoftFailedQueryContributesNothing(t *testing.T) {
	t.Parallel()
	src := &fakeSource{results: map[string]hh.Result{
		"between1And3": {Err: errors.New("network down")},
		"moreThan6":    {Vacancies: []hh.Vacancy{{ID: "3"}}},
	}}
	f := newTestFinder(fakePrefs{prefs: storage.Preferences{
		Grades: []string{"Junior-Middle", "Senior+"},
	}}, fakeLedger{}, src)

	got, err := f.Find(context.Background(), 5)
	if err != nil {
		t.Fatalf("soft failure must not surface: %v", err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("got %v", got)
	}
}

func TestFindSinceFromLedger(t *testing.T) {
	t.Parallel()
	last := time.Date(2024, 4, 30, 18, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	f := newTestFinder(fakePrefs{prefs: storage.Preferences{
		Grades: []string{"Junior-Middle"},
	}}, fakeLedger{last: last, ok: true}, src)

	if _, err := f.Find(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	if got, want := src.queries[0].Get("date_from"), search.FormatSince(last); got != want {
		t.Fatalf("date_from = %q, want %q", got, want)
	}
}

func TestFindSinceFallsBackToLookback(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	f := newTestFinder(fakePrefs{prefs: storage.Preferences{
		Grades: []string{"Junior-Middle"},
	}}, fakeLedger{}, src)

	if _, err := f.Find(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	want := search.FormatSince(time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC))
	if got := src.queries[0].Get("date_from"); got != want {
		t.Fatalf("date_from = %q, want %q", got, want)
	}
}

func TestFindNoGradesMeansNoQueries(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	f := newTestFinder(fakePrefs{}, fakeLedger{}, src)

	got, err := f.Find(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 || len(src.queries) != 0 {
		t.Fatalf("got %d vacancies, %d queries; want none", len(got), len(src.queries))
	}
}
