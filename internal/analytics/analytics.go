// Package analytics periodically writes a JSON usage snapshot. An
// external publishing job picks up the file; the bot only produces it.
package analytics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"vacanbot/internal/storage"
	"vacanbot/pkg/logx"
)

type Config struct {
	Schedule string // cron spec, default "0 21 * * *"
	Path     string // default "./data/analytics.json"
}

// StatsSource is the slice of the store the snapshot needs.
type StatsSource interface {
	Stats(ctx context.Context, now time.Time) (storage.Stats, error)
}

type snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	storage.Stats
}

type Service struct {
	source   StatsSource
	path     string
	schedule string
	log      logx.Logger

	cron *cron.Cron
}

func New(source StatsSource, cfg Config, log logx.Logger) *Service {
	sched := strings.TrimSpace(cfg.Schedule)
	if sched == "" {
		sched = "0 21 * * *"
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./data/analytics.json"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{source: source, path: path, schedule: sched, log: log}
}

func (s *Service) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Snapshot(ctx); err != nil {
			s.log.Error("analytics snapshot failed", logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("analytics schedule active", logx.String("schedule", s.schedule), logx.String("path", s.path))
	return nil
}

func (s *Service) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Snapshot computes the current stats and writes them atomically
// (temp file + rename) so the external reader never sees a torn file.
func (s *Service) Snapshot(ctx context.Context) error {
	now := time.Now()
	stats, err := s.source.Stats(ctx, now)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(snapshot{GeneratedAt: now, Stats: stats}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.log.Debug("analytics snapshot written", logx.String("path", s.path), logx.Int("users", stats.TotalUsers))
	return nil
}
