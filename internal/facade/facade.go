// Package facade is the agent's public call surface: the thin layer a UI
// host (desktop shell, CLI, test harness) drives instead of touching
// store/graph/session/syncengine/dispatcher/liveupdate directly. It plays
// the role the teacher's cli.App played for GophKeeper — a single
// top-level orchestrator that owns the wired components and exposes one
// call per user-visible action — generalized from a REPL-only caller to
// any embedding host.
//
// Every mutating method here returns a plain Go error instead of writing
// into a caller-supplied buffer; Context.ErrorMessage renders any error
// from this package into the human-readable string a language-neutral
// binding would place in that buffer. Asynchronous failures (push, pull,
// websocket) are never returned from a call; they reach the host only
// through the error callback registered in Init.
package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/config"
	"github.com/loctrack/agent/internal/dispatcher"
	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/liveupdate"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/session"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/syncengine"
	"github.com/loctrack/agent/internal/transport"
)

// Context is the single stateful object a host creates with Init and
// tears down with Shutdown. It is safe for concurrent use: every mutating
// call goes through the dispatcher's writer lock.
type Context struct {
	appName    string
	appVersion string

	cfg   *config.Config
	store *store.Store
	graph *graph.RelatedData

	session    *session.Session
	engine     *syncengine.Engine
	dispatcher *dispatcher.Dispatcher
	live       *liveupdate.Consumer

	log logging.Logger

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	websocketEnabled bool
	timelineEnabled  bool

	callbackMu sync.RWMutex
	onChange   func(dispatcher.Change)
	onError    func(string)
	onUpdate   func(string)
}

// New wires every component together from cfg but does not start any
// background worker; call Init to do that. Splitting construction from
// startup lets a host inspect/override cfg fields (set_db_path and
// friends) before anything touches the network or disk.
func New(cfg *config.Config, log logging.Logger) *Context {
	return &Context{cfg: cfg, log: log}
}

// Init opens the local store, restores the signed-in session (if any),
// and starts the dispatcher's background workers and the live-update
// consumer. appName/appVersion are stored on the Context; they are not
// sent with outgoing requests. The three callbacks are the only channel through which asynchronous events (graph changes, async
// errors, available-update notices) reach the host.
func (c *Context) Init(appName, appVersion string, onChange func(dispatcher.Change), onError func(string), onUpdate func(string)) error {
	c.appName = appName
	c.appVersion = appVersion
	c.callbackMu.Lock()
	c.onChange = onChange
	c.onError = onError
	c.onUpdate = onUpdate
	c.callbackMu.Unlock()

	ctx := context.Background()

	s, err := store.Open(ctx, c.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	c.store = s
	c.graph = graph.New()

	httpClient := transport.DefaultHTTPClient()
	sess := session.New(s, c.graph, nil, c.log)
	tr := transport.New(c.cfg.APIBaseURL, httpClient, sess.Token)
	sess.SetClient(tr)
	c.session = sess

	if err := c.session.LoadUser(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := c.session.LoadSettings(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := c.reloadGraphFromStore(ctx); err != nil {
		return fmt.Errorf("reload graph: %w", err)
	}

	c.engine = syncengine.New(s, c.graph, c.session, tr, c.log)
	c.dispatcher = dispatcher.New(c.engine, c.session, c.log, c.TimelineIsRecordingEnabled)
	c.dispatcher.SetListener(c.dispatchChange)
	c.dispatcher.SetErrorListener(c.reportAsync)
	c.live = liveupdate.New(c.cfg.WebSocketURL, c.session.Token, c.dispatcher, c.log)

	c.websocketEnabled = true
	c.timelineEnabled = false

	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatcher.Run(c.runCtx)
	}()
	if c.websocketEnabled {
		c.startLiveUpdate()
	}
	return nil
}

func (c *Context) startLiveUpdate() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.live.Run(c.runCtx)
	}()
}

// reloadGraphFromStore loads every entity kind from the store into the
// graph; Init calls it once after restoring the session.
func (c *Context) reloadGraphFromStore(ctx context.Context) error {
	workspaces, err := c.store.Workspaces.List(ctx)
	if err != nil {
		return err
	}
	for _, w := range workspaces {
		c.graph.PutWorkspace(w)
	}
	clients, err := c.store.Clients.List(ctx)
	if err != nil {
		return err
	}
	for _, cl := range clients {
		c.graph.PutClient(cl)
	}
	projects, err := c.store.Projects.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		c.graph.PutProject(p)
	}
	tasks, err := c.store.Tasks.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		c.graph.PutTask(t)
	}
	tags, err := c.store.Tags.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags {
		c.graph.PutTag(t)
	}
	entries, err := c.store.TimeEntries.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		c.graph.PutTimeEntry(e)
	}
	return nil
}

// dispatchChange is the dispatcher's registered listener; it forwards to
// the host's change callback, if any, outside the writer lock.
func (c *Context) dispatchChange(ch dispatcher.Change) {
	c.callbackMu.RLock()
	cb := c.onChange
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(ch)
	}
}

// reportAsync forwards an asynchronous failure (pull/push/websocket) to
// the host's error callback, per spec.md §7's propagation policy: these
// never surface through a synchronous return.
func (c *Context) reportAsync(err error) {
	if err == nil {
		return
	}
	c.callbackMu.RLock()
	cb := c.onError
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(c.ErrorMessage(err))
	}
}

// Shutdown stops every background worker and closes the store. It does
// not wipe any data; call Clear first if a full wipe is also wanted.
func (c *Context) Shutdown() error {
	if c.runCancel != nil {
		c.runCancel()
	}
	c.wg.Wait()
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Clear wipes the signed-in user and the entire local replica, store and
// in-memory graph alike. Local settings (proxy, idle detection, update
// channel) are kept. Equivalent to the public clear_cache call.
func (c *Context) Clear(ctx context.Context) error {
	if err := c.session.SignOutAndWipe(ctx); err != nil {
		return err
	}
	return nil
}

// ErrorMessage renders err the way a language-neutral binding's error
// buffer would receive it: apperr sentinels get a stable, user-facing
// phrasing, everything else falls back to err.Error().
func (c *Context) ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, apperr.ErrLoggedOut):
		return "you are not logged in"
	case errors.Is(err, apperr.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, apperr.ErrUnauthorized):
		return "invalid credentials or expired session"
	case errors.Is(err, apperr.ErrValidation):
		return err.Error()
	case errors.Is(err, apperr.ErrTransientNetwork):
		return "network error, will retry: " + err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return "not found"
	case errors.Is(err, apperr.ErrStore):
		return "local storage error: " + err.Error()
	default:
		return err.Error()
	}
}

// requireLoggedIn is consulted by every mutation that needs a signed-in
// user, per spec.md §7's user-input error kind.
func (c *Context) requireLoggedIn() error {
	if !c.session.IsLoggedIn() {
		return apperr.ErrLoggedOut
	}
	return nil
}

func (c *Context) mutate(fn func() error) error {
	return c.dispatcher.WithWriterLock(fn)
}
