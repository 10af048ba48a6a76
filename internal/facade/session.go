package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loctrack/agent/internal/model"
)

// CurrentUser returns the signed-in user, or the zero User if none.
func (c *Context) CurrentUser() model.User {
	return c.session.CurrentUser()
}

// SetAPIToken installs a previously obtained API token directly, used
// when a host restores a saved session without re-running Login.
func (c *Context) SetAPIToken(ctx context.Context, token string) error {
	return c.session.SetAPIToken(ctx, token)
}

// GetAPIToken returns the current API token, or "" if none.
func (c *Context) GetAPIToken() string {
	return c.session.CurrentUser().APIToken
}

// loggedInUserJSON is the subset of fields set_logged_in_user accepts,
// matching the shape a host would already have cached from a previous
// CurrentUser() call.
type loggedInUserJSON struct {
	APIToken              string `json:"api_token"`
	RemoteID              int64  `json:"id"`
	Email                 string `json:"email"`
	FullName              string `json:"fullname"`
	DefaultWorkspaceID    int64  `json:"default_wid"`
	RecordTimeline        bool   `json:"record_timeline"`
	StoreStartAndStopTime bool   `json:"store_start_and_stop_time"`
}

// SetLoggedInUser restores a previously cached user identity from its
// JSON encoding without contacting the server, mirroring the public
// set_logged_in_user(json) call used to warm-start a session a host
// already authenticated out-of-band.
func (c *Context) SetLoggedInUser(ctx context.Context, encoded string) error {
	var u loggedInUserJSON
	if err := json.Unmarshal([]byte(encoded), &u); err != nil {
		return fmt.Errorf("set logged in user: %w", err)
	}
	if u.APIToken == "" {
		return fmt.Errorf("set logged in user: missing api_token")
	}
	return c.session.RestoreUser(ctx, model.User{
		RemoteID:              u.RemoteID,
		APIToken:              u.APIToken,
		Email:                 u.Email,
		FullName:              u.FullName,
		DefaultWorkspaceID:    u.DefaultWorkspaceID,
		RecordTimeline:        u.RecordTimeline,
		StoreStartAndStopTime: u.StoreStartAndStopTime,
	})
}

// Login authenticates with email/password and persists the resulting
// API token.
func (c *Context) Login(ctx context.Context, email, password string) error {
	return c.session.Login(ctx, email, password)
}

// Logout clears the signed-in user's token without wiping the locally
// cached graph, so a later Login against the same account does not need
// a full re-pull. Use Clear for a full wipe.
func (c *Context) Logout(ctx context.Context) error {
	return c.session.InvalidateToken(ctx)
}

// ClearCache wipes the signed-in user and the entire local replica; local
// settings are kept.
func (c *Context) ClearCache(ctx context.Context) error {
	if err := c.Clear(ctx); err != nil {
		return err
	}
	return nil
}

// HasPremiumWorkspaces reports whether the signed-in user belongs to any
// premium workspace.
func (c *Context) HasPremiumWorkspaces() bool {
	return c.session.HasPremiumWorkspaces()
}
