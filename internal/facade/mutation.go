package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/dispatcher"
	"github.com/loctrack/agent/internal/formatter"
	"github.com/loctrack/agent/internal/model"
)

// PushableModels returns every time entry that Sync would include in its
// next batch push: dirty, never-pushed, or tombstoned-awaiting-delete.
func (c *Context) PushableModels() []*model.TimeEntry {
	return c.graph.CollectPushable()
}

// Sync runs a full pull followed by a push, the implementation of the
// public "sync" call. Partial pulls happen implicitly via the dispatcher's
// pull worker and the live-update consumer; this call is for a host that
// wants a synchronous, complete round-trip (e.g. on app foreground).
func (c *Context) Sync(ctx context.Context) error {
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	return c.mutate(func() error {
		if err := c.engine.FullPull(ctx); err != nil {
			return err
		}
		return c.engine.Push(ctx)
	})
}

func (c *Context) emitEntry(kind string, e *model.TimeEntry) {
	if e == nil {
		return
	}
	c.dispatcher.Emit(dispatcher.Change{ModelType: "time_entry", Kind: kind, RemoteID: e.RemoteID, GUID: e.GUID})
}

// Start begins a new running time entry (or a fixed-duration one, if dur
// is non-empty), stopping whatever entry is currently running first.
func (c *Context) Start(ctx context.Context, description, dur string, taskID, projectID int64) (*model.TimeEntry, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	var entry *model.TimeEntry
	err := c.mutate(func() error {
		var err error
		entry, err = c.engine.Start(ctx, description, dur, taskID, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.emitEntry("insert", entry)
	c.dispatcher.RequestPush()
	return entry, nil
}

// Continue restarts the entry identified by guid.
func (c *Context) Continue(ctx context.Context, guid string) (*model.TimeEntry, error) {
	if guid == "" {
		return nil, fmt.Errorf("%w: missing GUID", apperr.ErrInvalidInput)
	}
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	var entry *model.TimeEntry
	err := c.mutate(func() error {
		var err error
		entry, err = c.engine.Continue(ctx, guid)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.emitEntry("update", entry)
	c.dispatcher.RequestPush()
	return entry, nil
}

// ContinueLatest continues the most recently started entry, if any.
func (c *Context) ContinueLatest(ctx context.Context) (entry *model.TimeEntry, wasFound bool, err error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, false, err
	}
	lockErr := c.mutate(func() error {
		var innerErr error
		entry, wasFound, innerErr = c.engine.ContinueLatest(ctx)
		return innerErr
	})
	if lockErr != nil {
		return nil, false, lockErr
	}
	if wasFound {
		c.emitEntry("update", entry)
		c.dispatcher.RequestPush()
	}
	return entry, wasFound, nil
}

// Stop stops the currently-running entry, if any.
func (c *Context) Stop(ctx context.Context) ([]*model.TimeEntry, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	var stopped []*model.TimeEntry
	err := c.mutate(func() error {
		var err error
		stopped, err = c.engine.Stop(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, e := range stopped {
		c.emitEntry("update", e)
	}
	if len(stopped) > 0 {
		c.dispatcher.RequestPush()
	}
	return stopped, nil
}

// StopRunningTimeEntryAt stops the currently-running entry at an explicit
// unix-seconds timestamp instead of now.
func (c *Context) StopRunningTimeEntryAt(ctx context.Context, t int64) ([]*model.TimeEntry, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	var stopped []*model.TimeEntry
	err := c.mutate(func() error {
		var err error
		stopped, err = c.engine.StopAt(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, e := range stopped {
		c.emitEntry("update", e)
	}
	if len(stopped) > 0 {
		c.dispatcher.RequestPush()
	}
	return stopped, nil
}

// SplitRunningTimeEntryAt stops the running entry at t and immediately
// starts a new running entry carrying over its description, project,
// task and tags.
func (c *Context) SplitRunningTimeEntryAt(ctx context.Context, t int64) (stopped, started *model.TimeEntry, err error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, nil, err
	}
	lockErr := c.mutate(func() error {
		var innerErr error
		stopped, started, innerErr = c.engine.SplitAt(ctx, t)
		return innerErr
	})
	if lockErr != nil {
		return nil, nil, lockErr
	}
	c.emitEntry("update", stopped)
	c.emitEntry("insert", started)
	c.dispatcher.RequestPush()
	return stopped, started, nil
}

// DeleteTimeEntry tombstones the entry identified by guid; Sync/the push
// worker settles the deletion with the server.
func (c *Context) DeleteTimeEntry(ctx context.Context, guid string) error {
	if guid == "" {
		return fmt.Errorf("%w: missing GUID", apperr.ErrInvalidInput)
	}
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	err := c.mutate(func() error {
		return c.engine.Delete(ctx, guid)
	})
	if err != nil {
		return err
	}
	c.dispatcher.Emit(dispatcher.Change{ModelType: "time_entry", Kind: "delete", GUID: guid})
	c.dispatcher.RequestPush()
	return nil
}

// SetTimeEntryDescription edits an entry's description.
func (c *Context) SetTimeEntryDescription(ctx context.Context, guid, description string) (*model.TimeEntry, error) {
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetDescription(ctx, guid, description)
	})
}

// SetTimeEntryProject reassigns an entry's project.
func (c *Context) SetTimeEntryProject(ctx context.Context, guid string, projectID int64) (*model.TimeEntry, error) {
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetProject(ctx, guid, projectID)
	})
}

// SetTimeEntryBillable toggles an entry's billable flag.
func (c *Context) SetTimeEntryBillable(ctx context.Context, guid string, billable bool) (*model.TimeEntry, error) {
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetBillable(ctx, guid, billable)
	})
}

// SetTimeEntryTags replaces an entry's tag list.
func (c *Context) SetTimeEntryTags(ctx context.Context, guid string, tags []string) (*model.TimeEntry, error) {
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetTags(ctx, guid, tags)
	})
}

// SetTimeEntryDuration reparses a free-text duration string and applies
// it as a new stop time relative to the entry's existing start.
func (c *Context) SetTimeEntryDuration(ctx context.Context, guid, duration string) (*model.TimeEntry, error) {
	seconds := formatter.ParseDuration(duration)
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		entry := c.graph.GetTimeEntryByGUID(guid)
		if entry == nil {
			return nil, fmt.Errorf("%w: time entry %s", apperr.ErrNotFound, guid)
		}
		return c.engine.SetStop(ctx, guid, entry.Start+seconds)
	})
}

// SetTimeEntryStartISO8601 parses an RFC3339 timestamp and applies it as
// the entry's start time.
func (c *Context) SetTimeEntryStartISO8601(ctx context.Context, guid, iso8601 string) (*model.TimeEntry, error) {
	t, err := time.Parse(time.RFC3339, iso8601)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start time %q: %v", apperr.ErrInvalidInput, iso8601, err)
	}
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetStart(ctx, guid, t.Unix())
	})
}

// SetTimeEntryEndISO8601 parses an RFC3339 timestamp and applies it as
// the entry's stop time.
func (c *Context) SetTimeEntryEndISO8601(ctx context.Context, guid, iso8601 string) (*model.TimeEntry, error) {
	t, err := time.Parse(time.RFC3339, iso8601)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end time %q: %v", apperr.ErrInvalidInput, iso8601, err)
	}
	return c.setField(ctx, guid, func() (*model.TimeEntry, error) {
		return c.engine.SetStop(ctx, guid, t.Unix())
	})
}

// setField is the shared shape of every set_time_entry_* call: require a
// login, require a GUID, run the mutation under the writer lock, emit a
// change, and request a push.
func (c *Context) setField(ctx context.Context, guid string, apply func() (*model.TimeEntry, error)) (*model.TimeEntry, error) {
	if guid == "" {
		return nil, fmt.Errorf("%w: missing GUID", apperr.ErrInvalidInput)
	}
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	var entry *model.TimeEntry
	err := c.mutate(func() error {
		var err error
		entry, err = apply()
		return err
	})
	if err != nil {
		return nil, err
	}
	c.emitEntry("update", entry)
	c.dispatcher.RequestPush()
	return entry, nil
}
