package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vacanbot/internal/storage"
	"vacanbot/pkg/logx"
)

func TestSnapshotWritesJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	for _, id := range []int64{1, 2} {
		if err := store.EnsureUser(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.ReplaceLocations(ctx, 1, []string{"Удаленно"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordSent(ctx, 1, "42", time.Now()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "analytics.json")
	svc := New(store, Config{Path: path}, logx.Nop())

	if err := svc.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got struct {
		GeneratedAt time.Time      `json:"generated_at"`
		TotalUsers  int            `json:"total_users"`
		SentTotal   int            `json:"sent_total"`
		SentByHour  map[string]int `json:"sent_by_hour"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.GeneratedAt.IsZero() {
		t.Error("generated_at missing")
	}
	if got.TotalUsers != 2 || got.SentTotal != 1 {
		t.Errorf("snapshot = %+v", got)
	}
	hourTotal := 0
	for _, n := range got.SentByHour {
		hourTotal += n
	}
	if hourTotal != 1 {
		t.Errorf("sent_by_hour = %v, want one bucketed delivery", got.SentByHour)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file remained: %v", err)
	}
}

func TestSnapshotOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	path := filepath.Join(t.TempDir(), "analytics.json")
	svc := New(store, Config{Path: path}, logx.Nop())

	if err := svc.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureUser(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if err := svc.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got storage.Stats
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalUsers != 1 {
		t.Errorf("total_users = %d, want 1", got.TotalUsers)
	}
}

type failingSource struct{}

func (failingSource) Stats(context.Context, time.Time) (storage.Stats, error) {
	return storage.Stats{}, errors.New("db gone")
}

func TestSnapshotPropagatesStatsError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "analytics.json")
	svc := New(failingSource{}, Config{Path: path}, logx.Nop())

	if err := svc.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file written despite stats failure")
	}
}
