// Package app assembles the bot: config, logging, storage, the
// telegram adapter, the finder/sender pipeline and the analytics job.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"vacanbot/internal/analytics"
	"vacanbot/internal/config"
	"vacanbot/internal/finder"
	"vacanbot/internal/search"
	"vacanbot/internal/sender"
	"vacanbot/internal/source/hh"
	"vacanbot/internal/storage"
	"vacanbot/internal/transport/telegram"
	"vacanbot/pkg/logx"
)

const tokenEnv = "VACANBOT_TOKEN"

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store     storage.Store
	adapter   *telegram.Adapter
	finder    *finder.Finder
	sender    *sender.Service
	analytics *analytics.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads the config and constructs every component. Errors here
// are startup errors and fatal; once Start() returns nil, per-tick
// failures never take the process down.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := buildLogger(cfg.Logging)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(tokenEnv))
	}
	if token == "" {
		_ = logSvc.Close()
		return nil, errors.New("telegram token is not set (config or " + tokenEnv + ")")
	}

	stCfg, err := storageConfig(cfg.Storage)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	catalog := search.DefaultCatalog()

	tgCfg, err := telegramConfig(cfg.Telegram, token)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	adapter, err := telegram.New(tgCfg, store, catalog, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	srcCfg, err := sourceConfig(cfg.Source)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	client := hh.NewClient(srcCfg, log.With(logx.String("comp", "hh")))

	sndCfg, lookback, err := senderConfig(cfg.Sender)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	fdr := finder.New(store, store, client, catalog, lookback, log.With(logx.String("comp", "finder")))
	snd := sender.New(store, fdr, store, adapter, sndCfg, log.With(logx.String("comp", "sender")))

	var an *analytics.Service
	if cfg.Analytics != nil && cfg.Analytics.Enabled {
		an = analytics.New(store, analytics.Config{
			Schedule: cfg.Analytics.Schedule,
			Path:     cfg.Analytics.Path,
		}, log.With(logx.String("comp", "analytics")))
	}

	return &App{
		cfgMgr:    mgr,
		logSvc:    logSvc,
		log:       log,
		store:     store,
		adapter:   adapter,
		finder:    fdr,
		sender:    snd,
		analytics: an,
	}, nil
}

// Start launches polling, the sender loop, the config watcher and the
// analytics schedule. It returns immediately.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.adapter.Start(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.sender.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.applyReloads(runCtx)
	}()

	if a.analytics != nil {
		if err := a.analytics.Start(); err != nil {
			a.log.Error("analytics schedule rejected", logx.Err(err))
		}
	}

	a.log.Info("bot started")
	return nil
}

// applyReloads pushes committed config changes into the running
// components: log level, sender tunables, finder lookback. Components
// whose settings cannot change at runtime (token, storage path) keep
// their startup values until restart.
func (a *App) applyReloads(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logSvc.SetLevel(cfg.Logging.Level)

			sndCfg, lookback, err := senderConfig(cfg.Sender)
			if err != nil {
				a.log.Warn("reloaded sender config rejected", logx.Err(err))
				continue
			}
			a.sender.Apply(sndCfg)
			a.finder.SetLookback(lookback)
			a.log.Info("runtime settings applied",
				logx.Duration("interval", sndCfg.Interval),
				logx.Int("max_concurrent_users", sndCfg.MaxConcurrentUsers))
		}
	}
}

func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.analytics != nil {
		a.analytics.Stop()
	}
	a.wg.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("bot stopped")
	_ = a.logSvc.Close()
}
