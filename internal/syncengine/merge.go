package syncengine

import (
	"context"
	"time"

	"github.com/loctrack/agent/internal/model"
)

func nowUnix() int64 { return time.Now().UTC().Unix() }

// mergeClient applies the pull merge rule: find local by GUID, fall back
// to remote id, insert if neither exists, otherwise overwrite unless the
// local row is dirty (has pending local edits), in which case the local
// version wins and the pulled data is dropped.
func (e *Engine) mergeClient(ctx context.Context, r *model.Client) error {
	local, err := e.store.Clients.GetByGUID(ctx, r.GUID)
	if err != nil {
		return err
	}
	if local == nil && r.RemoteID != 0 {
		local, err = e.store.Clients.GetByRemoteID(ctx, r.RemoteID)
		if err != nil {
			return err
		}
	}
	if local == nil {
		if err := e.store.Clients.Insert(ctx, r); err != nil {
			return err
		}
		e.graph.PutClient(r)
		return nil
	}
	if local.UIModifiedAt > 0 {
		return nil
	}
	local.RemoteID = r.RemoteID
	local.GUID = r.GUID
	local.WorkspaceID = r.WorkspaceID
	local.Name = r.Name
	if err := e.store.Clients.Update(ctx, local); err != nil {
		return err
	}
	e.graph.PutClient(local)
	return nil
}

func (e *Engine) mergeProject(ctx context.Context, r *model.Project) error {
	local, err := e.store.Projects.GetByGUID(ctx, r.GUID)
	if err != nil {
		return err
	}
	if local == nil && r.RemoteID != 0 {
		local, err = e.store.Projects.GetByRemoteID(ctx, r.RemoteID)
		if err != nil {
			return err
		}
	}
	if local == nil {
		if err := e.store.Projects.Insert(ctx, r); err != nil {
			return err
		}
		e.graph.PutProject(r)
		return nil
	}
	if local.UIModifiedAt > 0 {
		return nil
	}
	local.RemoteID = r.RemoteID
	local.GUID = r.GUID
	local.WorkspaceID = r.WorkspaceID
	local.ClientID = r.ClientID
	local.Name = r.Name
	local.ColorCode = r.ColorCode
	local.Active = r.Active
	local.Billable = r.Billable
	if err := e.store.Projects.Update(ctx, local); err != nil {
		return err
	}
	e.graph.PutProject(local)
	return nil
}

func (e *Engine) mergeTag(ctx context.Context, r *model.Tag) error {
	local, err := e.store.Tags.GetByGUID(ctx, r.GUID)
	if err != nil {
		return err
	}
	if local == nil && r.RemoteID != 0 {
		local, err = e.store.Tags.GetByRemoteID(ctx, r.RemoteID)
		if err != nil {
			return err
		}
	}
	if local == nil {
		if err := e.store.Tags.Insert(ctx, r); err != nil {
			return err
		}
		e.graph.PutTag(r)
		return nil
	}
	local.RemoteID = r.RemoteID
	local.GUID = r.GUID
	local.WorkspaceID = r.WorkspaceID
	local.Name = r.Name
	if err := e.store.Tags.Update(ctx, local); err != nil {
		return err
	}
	e.graph.PutTag(local)
	return nil
}

// mergeTimeEntry applies the pull merge rule for time entries, which
// additionally carries the tombstone step: a pulled row with
// ServerDeletedAt set purges a clean local row; a dirty local row is kept
// and marked ServerDeletedAt, which takes it out of every later push. No
// later step purges such a row.
func (e *Engine) mergeTimeEntry(ctx context.Context, r *model.TimeEntry) error {
	local, err := e.store.TimeEntries.GetByGUID(ctx, r.GUID)
	if err != nil {
		return err
	}
	if local == nil && r.RemoteID != 0 {
		local, err = e.store.TimeEntries.GetByRemoteID(ctx, r.RemoteID)
		if err != nil {
			return err
		}
	}

	if local == nil {
		if r.ServerDeletedAt > 0 {
			return nil
		}
		if err := e.store.TimeEntries.Insert(ctx, r); err != nil {
			return err
		}
		e.graph.PutTimeEntry(r)
		return nil
	}

	if r.ServerDeletedAt > 0 {
		if local.UIModifiedAt == 0 {
			if err := e.store.TimeEntries.DeleteByLocalID(ctx, local.LocalID); err != nil {
				return err
			}
			e.graph.RemoveTimeEntry(local)
			return nil
		}
		local.ServerDeletedAt = r.ServerDeletedAt
		if err := e.store.TimeEntries.Update(ctx, local); err != nil {
			return err
		}
		e.graph.PutTimeEntry(local)
		return nil
	}

	if local.UIModifiedAt > 0 {
		return nil
	}

	local.RemoteID = r.RemoteID
	local.GUID = r.GUID
	local.WorkspaceID = r.WorkspaceID
	local.ProjectID = r.ProjectID
	local.TaskID = r.TaskID
	local.Description = r.Description
	local.Tags = r.Tags
	local.Billable = r.Billable
	local.Start = r.Start
	local.Stop = r.Stop
	local.DurationInSeconds = r.DurationInSeconds
	local.CreatedWith = r.CreatedWith
	local.ServerDeletedAt = r.ServerDeletedAt
	if err := e.store.TimeEntries.Update(ctx, local); err != nil {
		return err
	}
	e.graph.PutTimeEntry(local)
	return nil
}
