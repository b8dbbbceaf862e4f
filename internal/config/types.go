package config

// Config is the whole service configuration. JSON and YAML are both
// accepted; YAML is coerced to JSON before strict decoding, so unknown keys
// are rejected in either format.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Web       WebConfig       `json:"web"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChannelID is the numeric chat reminders are posted to.
	ChannelID string `json:"channel_id"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls the scan-and-deliver cadence.
type SchedulerConfig struct {
	// Scan is a Go duration ("30s", the default) or a cron expression.
	Scan string `json:"scan,omitempty"`
}

// DeliveryConfig controls outbound sends.
//
// Defaults (when fields are omitted/zero):
//   - send_timeout: "10s"
//   - rate_per_sec: 3
type DeliveryConfig struct {
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8080"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
