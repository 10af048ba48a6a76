package facade

import (
	"context"
	"fmt"

	"github.com/loctrack/agent/internal/model"
)

// SetDBPath overrides the local database path for the next Init; it has
// no effect on an already-open store.
func (c *Context) SetDBPath(path string) {
	c.cfg.DBPath = path
}

// SetAPIURL overrides the remote API base URL for the next Init.
func (c *Context) SetAPIURL(url string) {
	c.cfg.APIBaseURL = url
}

// SetWebSocketURL overrides the live-update stream URL for the next
// Init.
func (c *Context) SetWebSocketURL(url string) {
	c.cfg.WebSocketURL = url
}

// SetLogPath overrides the log file path for the next Init.
func (c *Context) SetLogPath(path string) {
	c.cfg.LogPath = path
}

// SetLogLevel overrides the log level ("debug", "info", "warn", "error")
// for the next Init.
func (c *Context) SetLogLevel(level string) {
	c.cfg.LogLevel = level
}

// Settings returns the current local settings (proxy, idle detection,
// update channel).
func (c *Context) Settings() model.Settings {
	return c.session.Settings()
}

// SetSettings replaces the local settings wholesale.
func (c *Context) SetSettings(ctx context.Context, settings model.Settings) error {
	return c.session.SetSettings(ctx, settings)
}

// ConfigureProxy updates the proxy section of the local settings. The
// HTTP transport itself does not read these back out (out of scope per
// spec.md §1 — "only the values consumed" matters here): the values are
// persisted, and Init's HTTP client does not apply them to requests.
func (c *Context) ConfigureProxy(ctx context.Context, use bool, host string, port int, user, password string) error {
	settings := c.session.Settings()
	settings.UseProxy = use
	settings.ProxyHost = host
	settings.ProxyPort = port
	settings.ProxyUser = user
	settings.ProxyPassword = password
	return c.session.SetSettings(ctx, settings)
}

// SetUpdateChannel persists the update channel ("stable", "beta", "dev").
func (c *Context) SetUpdateChannel(ctx context.Context, channel string) error {
	settings := c.session.Settings()
	settings.UpdateChannel = channel
	return c.session.SetSettings(ctx, settings)
}

// GetUpdateChannel returns the persisted update channel, defaulting to
// the config-level default if none was ever set.
func (c *Context) GetUpdateChannel() string {
	settings := c.session.Settings()
	if settings.UpdateChannel == "" {
		return c.cfg.UpdateChannel
	}
	return settings.UpdateChannel
}

// CheckForUpdates is a stub: auto-update downloading is explicitly out
// of scope (spec.md §1). It reports that no update mechanism is wired
// rather than silently succeeding, so a host cannot mistake this for "no
// update available".
func (c *Context) CheckForUpdates(ctx context.Context) (string, error) {
	return "", fmt.Errorf("check for updates: not implemented, channel %q", c.GetUpdateChannel())
}
