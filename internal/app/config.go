package app

import (
	"time"

	"vacanbot/internal/config"
	"vacanbot/internal/finder"
	"vacanbot/internal/sender"
	"vacanbot/internal/source/hh"
	"vacanbot/internal/storage"
	"vacanbot/internal/transport/telegram"
	"vacanbot/pkg/logx"
)

// This file translates the raw file config (duration strings) into the
// typed configs the components take.

func buildLogger(cfg config.LoggingConfig) (*logx.Service, logx.Logger) {
	console := true
	if cfg.Console != nil {
		console = *cfg.Console
	}
	return logx.New(logx.Config{
		Level:   cfg.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.File.Enabled,
			Path:    cfg.File.Path,
		},
	})
}

func storageConfig(cfg config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: cfg.Path, BusyTimeout: busy}, nil
}

func telegramConfig(cfg config.TelegramConfig, token string) (telegram.Config, error) {
	poll, err := config.ParseDurationField("telegram.poll_timeout", cfg.PollTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: token, PollTimeout: poll}, nil
}

func sourceConfig(cfg config.SourceConfig) (hh.Config, error) {
	timeout, err := config.ParseDurationField("source.request_timeout", cfg.RequestTimeout)
	if err != nil {
		return hh.Config{}, err
	}
	return hh.Config{
		BaseURL:        cfg.BaseURL,
		PageSize:       cfg.PageSize,
		RequestTimeout: timeout,
	}, nil
}

// senderConfig resolves the sender tunables plus the finder lookback
// (they share the config block).
func senderConfig(cfg config.SenderConfig) (sender.Config, time.Duration, error) {
	interval, err := config.ParseDurationOrDefault("sender.interval", cfg.Interval, 10*time.Second)
	if err != nil {
		return sender.Config{}, 0, err
	}
	findTimeout, err := config.ParseDurationOrDefault("sender.find_timeout", cfg.FindTimeout, 30*time.Second)
	if err != nil {
		return sender.Config{}, 0, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("sender.send_timeout", cfg.SendTimeout, 10*time.Second)
	if err != nil {
		return sender.Config{}, 0, err
	}
	delay, err := config.ParseDurationOrDefault("sender.message_delay", cfg.MessageDelay, 3*time.Second)
	if err != nil {
		return sender.Config{}, 0, err
	}
	lookback, err := config.ParseDurationOrDefault("sender.lookback", cfg.Lookback, finder.DefaultLookback)
	if err != nil {
		return sender.Config{}, 0, err
	}

	return sender.Config{
		Interval:           interval,
		FindTimeout:        findTimeout,
		SendTimeout:        sendTimeout,
		MaxConcurrentUsers: cfg.MaxConcurrentUsers,
		MessageDelay:       delay,
	}, lookback, nil
}
