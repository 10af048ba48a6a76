// Package model defines the entity types the agent keeps in its local
// replica: workspaces, clients, projects, tasks, tags, time entries and the
// current user/session. Every user-creatable kind carries a GUID that
// correlates it with its remote counterpart once pushed; see TimeEntry for
// the most elaborate case.
package model

// Workspace is a billing/permission boundary; it is never created or edited
// by this client, only pulled.
type Workspace struct {
	LocalID                    int64
	RemoteID                   int64
	Name                       string
	Premium                    bool
	Admin                      bool
	OnlyAdminsMayCreateProjects bool
}

// Client is an organization a Project can bill to.
type Client struct {
	LocalID      int64
	RemoteID     int64
	GUID         string
	WorkspaceID  int64
	Name         string
	UIModifiedAt int64
}

// Project groups time entries under a name, color and billable flag.
type Project struct {
	LocalID      int64
	RemoteID     int64
	GUID         string
	WorkspaceID  int64
	ClientID     int64 // 0 if unset
	Name         string
	ColorCode    string
	Active       bool
	Billable     bool
	UIModifiedAt int64
}

// Task is a unit of work within a Project.
type Task struct {
	LocalID      int64
	RemoteID     int64
	WorkspaceID  int64
	ProjectID    int64 // 0 if unset
	Name         string
	Active       bool
	UIModifiedAt int64
}

// Tag labels time entries; the wire format joins a TimeEntry's tags with
// semicolons, ordered.
type Tag struct {
	LocalID      int64
	RemoteID     int64
	GUID         string
	WorkspaceID  int64
	Name         string
	UIModifiedAt int64
}

// TimeEntry is the unit the sync engine cares most about: it is the only
// kind the client pushes, and the only kind with a running state.
//
// DurationInSeconds follows the wire-protocol convention that a negative
// value means "running since -DurationInSeconds" (i.e. since -Duration,
// equivalently Start == -Duration). Stop == 0 means running.
type TimeEntry struct {
	LocalID           int64
	RemoteID          int64
	GUID              string
	WorkspaceID       int64
	ProjectID         int64 // 0 if unset
	TaskID            int64 // 0 if unset
	Description       string
	Tags              []string
	Billable          bool
	Start             int64 // UTC unix seconds
	Stop              int64 // UTC unix seconds; 0 = running
	DurationInSeconds int64 // signed; negative while running
	CreatedWith       string

	UIModifiedAt    int64 // 0 = clean; >0 = dirty, holds the local mutation time
	ServerDeletedAt int64 // >0 = server confirmed this entry deleted
	LocalDeletedAt  int64 // >0 = user deleted locally, awaiting push

	// ValidationError holds the message returned by the last failed push
	// attempt (HTTP 4xx). Non-empty until the user corrects the entry and
	// it is pushed successfully again.
	ValidationError string
}

// IsRunning reports whether this is the one entry actively being timed.
func (e *TimeEntry) IsRunning() bool {
	return e.DurationInSeconds < 0
}

// IsDirty reports whether the entry has local changes not yet confirmed by
// the server.
func (e *TimeEntry) IsDirty() bool {
	return e.UIModifiedAt > 0
}

// IsTombstoned reports whether the user deleted this entry locally and it
// is awaiting a confirmed server delete.
func (e *TimeEntry) IsTombstoned() bool {
	return e.LocalDeletedAt > 0
}

// IsServerDeleted reports whether the server has confirmed deletion. Such
// entries are excluded from push (see NeedsPush) and stay in the store.
func (e *TimeEntry) IsServerDeleted() bool {
	return e.ServerDeletedAt > 0
}

// NeedsPush reports whether this entry should appear in a batch push:
// it is dirty, or has never been pushed (RemoteID == 0), or is tombstoned
// awaiting a DELETE, and has not already been confirmed deleted server-side.
func (e *TimeEntry) NeedsPush() bool {
	if e.IsServerDeleted() {
		return false
	}
	return e.IsDirty() || e.RemoteID == 0 || e.IsTombstoned()
}
