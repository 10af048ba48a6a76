package syncengine

import (
	"strings"
	"time"

	"github.com/loctrack/agent/internal/model"
)

// Wire structs mirror the remote service's JSON shapes. Field names
// follow the API's existing snake_case convention; times travel as
// RFC3339 strings and are converted to/from the model's UTC unix
// seconds at the boundary.

type wireWorkspace struct {
	ID                          int64  `json:"id"`
	Name                        string `json:"name"`
	Premium                     bool   `json:"premium"`
	Admin                       bool   `json:"admin"`
	OnlyAdminsMayCreateProjects bool   `json:"only_admins_may_create_projects"`
}

type wireClient struct {
	ID          int64  `json:"id"`
	GUID        string `json:"guid"`
	WorkspaceID int64  `json:"wid"`
	Name        string `json:"name"`
	At          string `json:"at,omitempty"`
}

type wireProject struct {
	ID          int64  `json:"id"`
	GUID        string `json:"guid"`
	WorkspaceID int64  `json:"wid"`
	ClientID    int64  `json:"cid,omitempty"`
	Name        string `json:"name"`
	ColorCode   string `json:"color,omitempty"`
	Active      bool   `json:"active"`
	Billable    bool   `json:"billable"`
	At          string `json:"at,omitempty"`
}

type wireTask struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"wid"`
	ProjectID   int64  `json:"pid,omitempty"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	At          string `json:"at,omitempty"`
}

type wireTag struct {
	ID          int64  `json:"id"`
	GUID        string `json:"guid"`
	WorkspaceID int64  `json:"wid"`
	Name        string `json:"name"`
	At          string `json:"at,omitempty"`
}

type wireTimeEntry struct {
	ID              int64  `json:"id,omitempty"`
	GUID            string `json:"guid"`
	WorkspaceID     int64  `json:"wid"`
	ProjectID       int64  `json:"pid,omitempty"`
	TaskID          int64  `json:"tid,omitempty"`
	Description     string `json:"description"`
	Tags            string `json:"tags,omitempty"`
	Billable        bool   `json:"billable"`
	Start           string `json:"start"`
	Stop            string `json:"stop,omitempty"`
	Duration        int64  `json:"duration"`
	CreatedWith     string `json:"created_with,omitempty"`
	At              string `json:"at,omitempty"`
	ServerDeletedAt string `json:"server_deleted_at,omitempty"`
}

func unixToWire(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func wireToUnix(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func workspaceFromWire(w wireWorkspace) *model.Workspace {
	return &model.Workspace{
		RemoteID:                    w.ID,
		Name:                        w.Name,
		Premium:                     w.Premium,
		Admin:                       w.Admin,
		OnlyAdminsMayCreateProjects: w.OnlyAdminsMayCreateProjects,
	}
}

func clientFromWire(w wireClient) *model.Client {
	return &model.Client{
		RemoteID:    w.ID,
		GUID:        w.GUID,
		WorkspaceID: w.WorkspaceID,
		Name:        w.Name,
	}
}

func projectFromWire(w wireProject) *model.Project {
	return &model.Project{
		RemoteID:    w.ID,
		GUID:        w.GUID,
		WorkspaceID: w.WorkspaceID,
		ClientID:    w.ClientID,
		Name:        w.Name,
		ColorCode:   w.ColorCode,
		Active:      w.Active,
		Billable:    w.Billable,
	}
}

func taskFromWire(w wireTask) *model.Task {
	return &model.Task{
		RemoteID:    w.ID,
		WorkspaceID: w.WorkspaceID,
		ProjectID:   w.ProjectID,
		Name:        w.Name,
		Active:      w.Active,
	}
}

func tagFromWire(w wireTag) *model.Tag {
	return &model.Tag{
		RemoteID:    w.ID,
		GUID:        w.GUID,
		WorkspaceID: w.WorkspaceID,
		Name:        w.Name,
	}
}

func timeEntryFromWire(w wireTimeEntry) *model.TimeEntry {
	e := &model.TimeEntry{
		RemoteID:          w.ID,
		GUID:              w.GUID,
		WorkspaceID:       w.WorkspaceID,
		ProjectID:         w.ProjectID,
		TaskID:            w.TaskID,
		Description:       w.Description,
		Billable:          w.Billable,
		Start:             wireToUnix(w.Start),
		Stop:              wireToUnix(w.Stop),
		DurationInSeconds: w.Duration,
		CreatedWith:       w.CreatedWith,
		ServerDeletedAt:   wireToUnix(w.ServerDeletedAt),
	}
	if w.Tags != "" {
		e.Tags = strings.Split(w.Tags, ";")
	}
	return e
}

func timeEntryToWire(e *model.TimeEntry) wireTimeEntry {
	return wireTimeEntry{
		ID:          e.RemoteID,
		GUID:        e.GUID,
		WorkspaceID: e.WorkspaceID,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		Description: e.Description,
		Tags:        strings.Join(e.Tags, ";"),
		Billable:    e.Billable,
		Start:       unixToWire(e.Start),
		Stop:        unixToWire(e.Stop),
		Duration:    e.DurationInSeconds,
		CreatedWith: e.CreatedWith,
	}
}
