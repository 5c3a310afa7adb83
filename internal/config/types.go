package config

// Config is the full bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig   `json:"telegram"`
	Logging   LoggingConfig    `json:"logging"`
	Storage   StorageConfig    `json:"storage"`
	Source    SourceConfig     `json:"source,omitempty"`
	Sender    SenderConfig     `json:"sender,omitempty"`
	Analytics *AnalyticsConfig `json:"analytics,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the
	// VACANBOT_TOKEN environment variable instead.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"` // debug|info|warn|error, default info
	Console *bool      `json:"console,omitempty"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the SQLite store holding users, preferences
// and the sent-vacancies ledger.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // default "5s"
}

// SourceConfig controls the job-board API client.
type SourceConfig struct {
	BaseURL        string `json:"base_url,omitempty"`  // default https://api.hh.ru/vacancies
	PageSize       int    `json:"page_size,omitempty"` // default 20
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// SenderConfig controls the fan-out delivery loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "10s"
//   - find_timeout: "30s"
//   - send_timeout: "10s"
//   - max_concurrent_users: 20
//   - message_delay: "3s"
//   - lookback: "10m"
type SenderConfig struct {
	Interval    string `json:"interval,omitempty"`
	FindTimeout string `json:"find_timeout,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`

	MaxConcurrentUsers int `json:"max_concurrent_users,omitempty"`

	// MessageDelay spaces out successive vacancy messages so the bot
	// stays under Telegram's outbound rate limits.
	MessageDelay string `json:"message_delay,omitempty"`

	// Lookback is the search window used for a user with no delivery
	// history yet. Keeps the first query bounded instead of "all time".
	Lookback string `json:"lookback,omitempty"`
}

// AnalyticsConfig controls the periodic usage snapshot. The snapshot
// file is consumed by an external publishing job; this bot only
// writes it.
type AnalyticsConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 21 * * *"
	Path     string `json:"path,omitempty"`     // default "./data/analytics.json"
}
