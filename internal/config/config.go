// Package config loads agent configuration the same way the teacher's
// client config does: defaults, then an optional JSON file, then
// command-line flags, each overriding the last. The facade also exposes
// its own setters (set_db_path, set_api_url, ...) for hosts that embed
// the agent and configure it programmatically instead of via flags.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/loctrack/agent/internal/flagx"
)

// Config holds every agent-wide setting that is not tied to a signed-in
// user (those live in model.Settings, persisted via session).
type Config struct {
	DBPath        string
	APIBaseURL    string
	WebSocketURL  string
	LogPath       string
	LogLevel      string // "debug", "info", "warn", "error"
	PullInterval  time.Duration
	UpdateChannel string
}

// LoadDefaults populates c with the agent's built-in defaults, matching
// spec.md §6's wire protocol defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "loctrack.db"
	c.APIBaseURL = "https://www.toggl.com"
	c.WebSocketURL = "wss://stream.toggl.com"
	c.LogPath = "loctrack.log"
	c.LogLevel = "info"
	c.PullInterval = 5 * time.Minute
	c.UpdateChannel = "stable"
}

// Load builds a Config by applying defaults, then overlaying an optional
// JSON file (-c/-config), then command-line flags.
func Load() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}

// jsonDuration accepts either a Go duration string ("5m") or a plain
// integer of nanoseconds, mirroring the teacher's timex.Duration without
// depending on that package (not present in this retrieval).
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
		return nil
	}
	var asNanos int64
	if err := json.Unmarshal(data, &asNanos); err != nil {
		return err
	}
	*d = jsonDuration(asNanos)
	return nil
}

type jsonConfig struct {
	DBPath        string       `json:"db_path"`
	APIBaseURL    string       `json:"api_base_url"`
	WebSocketURL  string       `json:"websocket_url"`
	LogPath       string       `json:"log_path"`
	LogLevel      string       `json:"log_level"`
	PullInterval  jsonDuration `json:"pull_interval"`
	UpdateChannel string       `json:"update_channel"`
}

func parseJSON(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.WebSocketURL != "" {
		cfg.WebSocketURL = jc.WebSocketURL
	}
	if jc.LogPath != "" {
		cfg.LogPath = jc.LogPath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.PullInterval != 0 {
		cfg.PullInterval = time.Duration(jc.PullInterval)
	}
	if jc.UpdateChannel != "" {
		cfg.UpdateChannel = jc.UpdateChannel
	}
}

func parseFlags(cfg *Config) {
	allowed := []string{"-db", "-api-url", "-ws-url", "-log-path", "-log-level"}
	args := flagx.FilterArgs(os.Args[1:], allowed)

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the local SQLite database")
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "base URL of the remote time-tracking API")
	fs.StringVar(&cfg.WebSocketURL, "ws-url", cfg.WebSocketURL, "URL of the live-update websocket feed")
	fs.StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "path to the rotating log file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
