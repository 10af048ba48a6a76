// Package session owns the signed-in user's identity: the API token
// lifecycle, login, the premium/proxy/recording flags, and the one
// atomic sign-out-and-wipe operation. It is the client-side analogue of
// the teacher's GRPCClient token bookkeeping, generalized from a single
// access/refresh token pair to the API-token-only scheme the remote
// time-tracking service uses.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/model"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/transport"
)

// Session guards the current user and settings with its own mutex so
// reads (in particular transport.TokenSource) never need the
// dispatcher's writer lock.
type Session struct {
	mu           sync.RWMutex
	user         *model.User
	settings     *model.Settings
	loggedIn     bool
	premiumCache bool

	store  *store.Store
	graph  *graph.RelatedData
	client *transport.Client
	log    logging.Logger
}

// New returns a Session with no signed-in user.
func New(s *store.Store, g *graph.RelatedData, client *transport.Client, log logging.Logger) *Session {
	return &Session{
		store:    s,
		graph:    g,
		client:   client,
		log:      log,
		user:     &model.User{},
		settings: &model.Settings{},
	}
}

// SetClient installs the HTTP client used by Login. It exists because
// transport.New itself needs a TokenSource bound to this Session,
// creating a construction-order cycle; callers build the Session first
// with a nil client, build the transport.Client from Session.Token, then
// call SetClient before the first Login.
func (s *Session) SetClient(client *transport.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// Token is a transport.TokenSource bound to this session; pass it to
// transport.New so every request picks up the latest token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.APIToken
}

// loginResponse is the subset of POST /api/v8/sessions's {"data": {...}}
// envelope the agent needs.
type loginResponse struct {
	Data struct {
		APIToken           string `json:"api_token"`
		ID                 int64  `json:"id"`
		Email              string `json:"email"`
		Fullname           string `json:"fullname"`
		DefaultWorkspaceID int64  `json:"default_wid"`
	} `json:"data"`
}

// Login authenticates with email/password against POST /api/v8/sessions,
// persists the resulting API token and identity, and marks the session
// signed in.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", apperr.ErrInvalidInput)
	}

	var resp loginResponse
	if err := s.client.PostBasicAuth(ctx, "/api/v8/sessions", email, password, nil, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.user.APIToken = resp.Data.APIToken
	s.user.RemoteID = resp.Data.ID
	s.user.Email = resp.Data.Email
	s.user.FullName = resp.Data.Fullname
	s.user.DefaultWorkspaceID = resp.Data.DefaultWorkspaceID
	s.loggedIn = true
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return err
	}
	s.log.Info(ctx, "session: login succeeded", "email", email)
	return nil
}

// RestoreUser installs a previously authenticated user identity directly,
// without contacting the server, used to warm-start a session a host
// already authenticated out-of-band (e.g. via a cached token plus
// identity fields rather than a fresh Login).
func (s *Session) RestoreUser(ctx context.Context, u model.User) error {
	s.mu.Lock()
	s.user = &u
	s.loggedIn = u.APIToken != ""
	s.mu.Unlock()
	return s.persist(ctx)
}

// CurrentUser returns a copy of the signed-in user, or the zero User if
// none is signed in.
func (s *Session) CurrentUser() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.user
}

// IsLoggedIn reports whether a user is currently signed in with a usable
// token.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn && s.user.APIToken != ""
}

// SetAPIToken installs a previously obtained token directly, used when a
// host application restores a saved session without re-running Login.
func (s *Session) SetAPIToken(ctx context.Context, token string) error {
	s.mu.Lock()
	s.user.APIToken = token
	s.loggedIn = token != ""
	s.mu.Unlock()
	return s.persist(ctx)
}

// InvalidateToken clears the token: it is no longer usable and the user
// must re-authenticate. It is called by the live-update consumer (through
// the dispatcher) when the stream answers 401, and by the facade's Logout.
// A 401 from a pull or push is returned as apperr.ErrUnauthorized and does
// not call it.
func (s *Session) InvalidateToken(ctx context.Context) error {
	s.mu.Lock()
	s.user.APIToken = ""
	s.loggedIn = false
	s.mu.Unlock()
	s.log.Warn(ctx, "session: token invalidated, re-authentication required")
	return s.persist(ctx)
}

// HasPremiumWorkspaces reports whether any workspace in the last pull was
// flagged premium.
func (s *Session) HasPremiumWorkspaces() bool {
	// The flag is the value the sync engine last stored through
	// SetPremiumCache; it is not recomputed from the graph here.
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.premiumCache
}

// SetPremiumCache is called by the sync engine after every pull merge, since
// it is the component that iterates every workspace already.
func (s *Session) SetPremiumCache(premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premiumCache = premium
}

// SetRecordTimeline toggles the persisted timeline-recording flag.
func (s *Session) SetRecordTimeline(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.user.RecordTimeline = enabled
	s.mu.Unlock()
	return s.persist(ctx)
}

func (s *Session) RecordTimeline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.RecordTimeline
}

// Settings returns a copy of the persisted local settings.
func (s *Session) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.settings
}

// SetSettings replaces the local settings wholesale and persists them.
func (s *Session) SetSettings(ctx context.Context, settings model.Settings) error {
	s.mu.Lock()
	s.settings = &settings
	s.mu.Unlock()
	return s.persistSettings(ctx)
}

// Since returns the sync cursor from the last successful pull, full or
// partial.
func (s *Session) Since() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Since
}

// SetSince updates the sync cursor; it must monotonically increase, per
// the store invariant.
func (s *Session) SetSince(ctx context.Context, since int64) error {
	s.mu.Lock()
	if since > s.user.Since {
		s.user.Since = since
	}
	s.mu.Unlock()
	return s.persist(ctx)
}

// SignOutAndWipe clears the signed-in user (with its per-account flags)
// and the entire entity graph (store and in-memory alike), as one
// operation; the local Settings are kept: splitting it into a separate clear_cache and logout
// (as some front-ends historically called them) risks leaving stale
// entries behind a cleared token, or a cleared graph with the old token
// still valid. The store side runs as one transaction via
// Store.WipeAccountData, so a crash mid-wipe never leaves a half-cleared
// database; the in-memory user/graph are reset only after that commits.
func (s *Session) SignOutAndWipe(ctx context.Context) error {
	if err := s.store.WipeAccountData(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = &model.User{}
	s.loggedIn = false
	s.premiumCache = false
	s.mu.Unlock()

	s.graph.Reset()
	s.log.Info(ctx, "session: signed out and wiped local cache")
	return nil
}

// persist writes the signed-in user as a single JSON row keyed by
// KeyCurrentUser — api token, identity fields, and the since cursor
// together — matching spec.md's single persisted session row. A
// signed-out user (no token) deletes the key instead of writing an
// empty blob.
func (s *Session) persist(ctx context.Context) error {
	u := s.CurrentUser()
	if u.APIToken == "" {
		return s.store.KV.Delete(ctx, store.KeyCurrentUser)
	}
	encoded, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.store.KV.Set(ctx, store.KeyCurrentUser, string(encoded))
}

func (s *Session) persistSettings(ctx context.Context) error {
	settings := s.Settings()
	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.store.KV.Set(ctx, store.KeySettings, string(encoded))
}

// LoadSettings restores settings previously saved with SetSettings. It is
// a no-op (leaving the zero-value Settings in place) if none were saved.
func (s *Session) LoadSettings(ctx context.Context) error {
	encoded, ok, err := s.store.KV.Get(ctx, store.KeySettings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return nil
	}
	var settings model.Settings
	if err := json.Unmarshal([]byte(encoded), &settings); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	s.mu.Lock()
	s.settings = &settings
	s.mu.Unlock()
	return nil
}

// LoadUser restores the previously persisted session row — api token,
// identity fields, and the since cursor — used on startup before the
// dispatcher's workers begin. A missing row is not an error: it just
// means no one has ever signed in on this machine.
func (s *Session) LoadUser(ctx context.Context) error {
	encoded, ok, err := s.store.KV.Get(ctx, store.KeyCurrentUser)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil
	}
	var u model.User
	if err := json.Unmarshal([]byte(encoded), &u); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.loggedIn = u.APIToken != ""
	s.mu.Unlock()
	return nil
}
