package syncengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/formatter"
	"github.com/loctrack/agent/internal/model"
)

// Start stops whatever entry is currently running, then creates a new
// entry. An empty dur starts it running (Draft, duration_in_seconds =
// -now); a non-empty dur is parsed with formatter.ParseDuration and
// produces a fixed-duration entry instead.
func (e *Engine) Start(ctx context.Context, desc, dur string, taskID, projectID int64) (*model.TimeEntry, error) {
	if _, err := e.Stop(ctx); err != nil {
		return nil, err
	}

	now := e.now()
	entry := &model.TimeEntry{
		GUID:         e.newGUID(),
		Description:  desc,
		TaskID:       taskID,
		ProjectID:    projectID,
		Start:        now,
		UIModifiedAt: now,
	}
	if dur == "" {
		entry.DurationInSeconds = -now
	} else {
		seconds := formatter.ParseDuration(dur)
		entry.Stop = now + seconds
		entry.DurationInSeconds = seconds
	}

	if err := e.store.TimeEntries.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	e.graph.PutTimeEntry(entry)
	return entry, nil
}

func (e *Engine) runningEntries() []*model.TimeEntry {
	var running []*model.TimeEntry
	for _, entry := range e.graph.AllTimeEntries() {
		if entry.IsRunning() {
			running = append(running, entry)
		}
	}
	sort.Slice(running, func(i, j int) bool { return running[i].Start < running[j].Start })
	return running
}

// Stop stops every currently-running entry at now. Normally there is at
// most one (invariant 1); if more than one is found it stops all of
// them, in start order, and logs a warning, per the spec's defensive
// tie-break rule.
func (e *Engine) Stop(ctx context.Context) ([]*model.TimeEntry, error) {
	return e.stopAllAt(ctx, e.now())
}

// StopAt is Stop with an explicit stop time instead of now; it rejects a
// time at or before any running entry's start.
func (e *Engine) StopAt(ctx context.Context, t int64) ([]*model.TimeEntry, error) {
	for _, entry := range e.runningEntries() {
		if t <= entry.Start {
			return nil, fmt.Errorf("%w: stop time %d is not after start time %d", apperr.ErrValidation, t, entry.Start)
		}
	}
	return e.stopAllAt(ctx, t)
}

func (e *Engine) stopAllAt(ctx context.Context, t int64) ([]*model.TimeEntry, error) {
	running := e.runningEntries()
	if len(running) == 0 {
		return nil, nil
	}
	if len(running) > 1 {
		e.log.Warn(ctx, "syncengine: multiple running entries found, stopping all", "count", len(running))
	}

	now := e.now()
	for _, entry := range running {
		entry.Stop = t
		entry.DurationInSeconds = t - entry.Start
		entry.UIModifiedAt = now
		if err := e.store.TimeEntries.Update(ctx, entry); err != nil {
			return nil, fmt.Errorf("stop[%s]: %w", entry.GUID, err)
		}
		e.graph.PutTimeEntry(entry)
	}
	return running, nil
}

// Continue restarts the entry identified by guid: if it is already
// running this is a no-op. Otherwise, if the account is not configured
// to store explicit start/stop times and the entry is from today, it is
// extended in place; otherwise a fresh Draft clone is created and
// started.
func (e *Engine) Continue(ctx context.Context, guid string) (*model.TimeEntry, error) {
	target := e.graph.GetTimeEntryByGUID(guid)
	if target == nil {
		return nil, fmt.Errorf("%w: time entry %s", apperr.ErrNotFound, guid)
	}
	if target.IsRunning() {
		return target, nil
	}

	now := e.now()
	if !e.session.CurrentUser().StoreStartAndStopTime && isSameUTCDay(target.Start, now) {
		if _, err := e.Stop(ctx); err != nil {
			return nil, err
		}
		target.Stop = 0
		target.DurationInSeconds = -now
		target.UIModifiedAt = now
		if err := e.store.TimeEntries.Update(ctx, target); err != nil {
			return nil, fmt.Errorf("continue[%s]: %w", guid, err)
		}
		e.graph.PutTimeEntry(target)
		return target, nil
	}

	clone, err := e.Start(ctx, target.Description, "", target.TaskID, target.ProjectID)
	if err != nil {
		return nil, err
	}
	clone.Billable = target.Billable
	clone.Tags = append([]string(nil), target.Tags...)
	if err := e.store.TimeEntries.Update(ctx, clone); err != nil {
		return nil, fmt.Errorf("continue[%s]: %w", guid, err)
	}
	e.graph.PutTimeEntry(clone)
	return clone, nil
}

// ContinueLatest continues the most recently started entry, if any.
// wasFound is false (with no mutation) when the graph has no entries.
func (e *Engine) ContinueLatest(ctx context.Context) (entry *model.TimeEntry, wasFound bool, err error) {
	all := e.graph.AllTimeEntries()
	if len(all) == 0 {
		return nil, false, nil
	}
	sortDescByStart(all)
	entry, err = e.Continue(ctx, all[0].GUID)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func sortDescByStart(entries []*model.TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Start > entries[j].Start })
}

// SplitAt stops the running entry at t and immediately starts a new
// running entry at t carrying over the same description, project, task,
// billable flag and tags.
func (e *Engine) SplitAt(ctx context.Context, t int64) (stopped, started *model.TimeEntry, err error) {
	running := e.runningEntries()
	if len(running) == 0 {
		return nil, nil, fmt.Errorf("%w: no running time entry", apperr.ErrNotFound)
	}
	current := running[0]
	if t <= current.Start {
		return nil, nil, fmt.Errorf("%w: split time %d is not after start time %d", apperr.ErrValidation, t, current.Start)
	}

	stoppedEntries, err := e.stopAllAt(ctx, t)
	if err != nil {
		return nil, nil, err
	}

	next := &model.TimeEntry{
		GUID:              e.newGUID(),
		WorkspaceID:       current.WorkspaceID,
		ProjectID:         current.ProjectID,
		TaskID:            current.TaskID,
		Description:       current.Description,
		Tags:              append([]string(nil), current.Tags...),
		Billable:          current.Billable,
		Start:             t,
		DurationInSeconds: -t,
		UIModifiedAt:      e.now(),
	}
	if err := e.store.TimeEntries.Insert(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("split_at: %w", err)
	}
	e.graph.PutTimeEntry(next)
	return stoppedEntries[0], next, nil
}

// Delete marks the entry Tombstoned; Push later settles it with the
// server (or purges it immediately, without a network call, if it was
// never pushed in the first place).
func (e *Engine) Delete(ctx context.Context, guid string) error {
	entry := e.graph.GetTimeEntryByGUID(guid)
	if entry == nil {
		return fmt.Errorf("%w: time entry %s", apperr.ErrNotFound, guid)
	}
	now := e.now()
	entry.LocalDeletedAt = now
	entry.UIModifiedAt = now
	if err := e.store.TimeEntries.Update(ctx, entry); err != nil {
		return fmt.Errorf("delete[%s]: %w", guid, err)
	}
	e.graph.PutTimeEntry(entry)
	return nil
}

func isSameUTCDay(a, b int64) bool {
	ta := time.Unix(a, 0).UTC()
	tb := time.Unix(b, 0).UTC()
	return ta.Year() == tb.Year() && ta.YearDay() == tb.YearDay()
}

// setField mutates an entry identified by guid via apply, refreshing
// ui_modified_at and persisting only if apply reports the value actually
// changed.
func (e *Engine) setField(ctx context.Context, guid string, apply func(*model.TimeEntry) bool) (*model.TimeEntry, error) {
	entry := e.graph.GetTimeEntryByGUID(guid)
	if entry == nil {
		return nil, fmt.Errorf("%w: time entry %s", apperr.ErrNotFound, guid)
	}
	if !apply(entry) {
		return entry, nil
	}
	entry.UIModifiedAt = e.now()
	if err := e.store.TimeEntries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("set field[%s]: %w", guid, err)
	}
	e.graph.PutTimeEntry(entry)
	return entry, nil
}

func (e *Engine) SetDescription(ctx context.Context, guid, description string) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.Description == description {
			return false
		}
		entry.Description = description
		return true
	})
}

func (e *Engine) SetProject(ctx context.Context, guid string, projectID int64) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.ProjectID == projectID {
			return false
		}
		entry.ProjectID = projectID
		return true
	})
}

func (e *Engine) SetTask(ctx context.Context, guid string, taskID int64) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.TaskID == taskID {
			return false
		}
		entry.TaskID = taskID
		return true
	})
}

func (e *Engine) SetBillable(ctx context.Context, guid string, billable bool) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.Billable == billable {
			return false
		}
		entry.Billable = billable
		return true
	})
}

func (e *Engine) SetTags(ctx context.Context, guid string, tags []string) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if sameTags(entry.Tags, tags) {
			return false
		}
		entry.Tags = tags
		return true
	})
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Engine) SetStart(ctx context.Context, guid string, start int64) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.Start == start {
			return false
		}
		entry.Start = start
		if !entry.IsRunning() {
			entry.DurationInSeconds = entry.Stop - entry.Start
		}
		return true
	})
}

func (e *Engine) SetStop(ctx context.Context, guid string, stop int64) (*model.TimeEntry, error) {
	return e.setField(ctx, guid, func(entry *model.TimeEntry) bool {
		if entry.Stop == stop {
			return false
		}
		entry.Stop = stop
		entry.DurationInSeconds = entry.Stop - entry.Start
		return true
	})
}
