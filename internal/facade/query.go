package facade

import (
	"sort"
	"time"

	"github.com/loctrack/agent/internal/formatter"
	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/model"
)

// TimeEntryViewItem is a TimeEntry enriched with the display data a host
// would otherwise have to join itself: the task/project/client chain
// rendered as one string, a ready-made HH:MM:SS duration, and the date
// header it groups under.
type TimeEntryViewItem struct {
	GUID              string
	Description       string
	ProjectID         int64
	TaskID            int64
	WorkspaceID       int64
	Tags              []string
	Billable          bool
	Start             int64
	Stop              int64
	DurationInSeconds int64
	Running           bool
	Dirty             bool
	ValidationError   string

	TaskProjectClient string
	FormattedDuration string
	DateHeader        string
}

func (c *Context) toViewItem(e *model.TimeEntry) *TimeEntryViewItem {
	task := c.graph.GetTaskByID(e.TaskID)
	project := c.graph.GetProjectByID(e.ProjectID)
	var client *model.Client
	if project != nil && project.ClientID != 0 {
		client = c.graph.GetClientByID(project.ClientID)
	}

	duration := e.DurationInSeconds
	if e.IsRunning() {
		duration = time.Now().Unix() - e.Start
	}

	return &TimeEntryViewItem{
		GUID:              e.GUID,
		Description:       e.Description,
		ProjectID:         e.ProjectID,
		TaskID:            e.TaskID,
		WorkspaceID:       e.WorkspaceID,
		Tags:              e.Tags,
		Billable:          e.Billable,
		Start:             e.Start,
		Stop:              e.Stop,
		DurationInSeconds: e.DurationInSeconds,
		Running:           e.IsRunning(),
		Dirty:             e.IsDirty(),
		ValidationError:   e.ValidationError,
		TaskProjectClient: graph.JoinTaskName(task, project, client),
		FormattedDuration: formatter.FormatHHMMSS(duration),
		DateHeader:        formatter.DateHeader(e.Start, nil),
	}
}

// TimeEntryViewItems returns every non-tombstoned, non-server-deleted
// time entry, most recently started first.
func (c *Context) TimeEntryViewItems() []*TimeEntryViewItem {
	entries := c.graph.AllTimeEntries()
	visible := make([]*model.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsTombstoned() || e.IsServerDeleted() {
			continue
		}
		visible = append(visible, e)
	}
	graph.SortTimeEntriesByStart(visible)

	out := make([]*TimeEntryViewItem, 0, len(visible))
	for _, e := range visible {
		out = append(out, c.toViewItem(e))
	}
	return out
}

// RunningTimeEntryViewItem returns the one entry currently being timed,
// if any.
func (c *Context) RunningTimeEntryViewItem() (*TimeEntryViewItem, bool) {
	for _, e := range c.graph.AllTimeEntries() {
		if e.IsRunning() {
			return c.toViewItem(e), true
		}
	}
	return nil, false
}

// TimeEntryViewItemByGUID looks up a single entry view by GUID.
func (c *Context) TimeEntryViewItemByGUID(guid string) (*TimeEntryViewItem, bool) {
	e := c.graph.GetTimeEntryByGUID(guid)
	if e == nil {
		return nil, false
	}
	return c.toViewItem(e), true
}

// DurationForDateHeader sums the duration (in seconds) of every
// non-running entry whose DateHeader matches header.
func (c *Context) DurationForDateHeader(header string) int64 {
	var total int64
	for _, e := range c.graph.AllTimeEntries() {
		if e.IsTombstoned() || e.IsServerDeleted() || e.IsRunning() {
			continue
		}
		if formatter.DateHeader(e.Start, nil) == header {
			total += e.DurationInSeconds
		}
	}
	return total
}

// Tags returns every known tag, sorted by name.
func (c *Context) Tags() []*model.Tag {
	return c.graph.TagsSorted()
}

// AutocompleteItem is a single selectable entry in the new-time-entry
// autocomplete dropdown: either a past description, a task, or a
// project, depending on which include flags were set.
type AutocompleteItem struct {
	Text        string
	ProjectID   int64
	TaskID      int64
	WorkspaceID int64
	Billable    bool
}

// AutocompleteItems builds the dropdown list a host shows while a user
// types a new time entry's description: recent descriptions, tasks,
// and/or projects, each flag independently toggled.
func (c *Context) AutocompleteItems(includeTimeEntries, includeTasks, includeProjects bool) []AutocompleteItem {
	var out []AutocompleteItem
	seen := make(map[string]bool)

	if includeTimeEntries {
		entries := c.graph.AllTimeEntries()
		graph.SortTimeEntriesByStart(entries)
		for _, e := range entries {
			if e.Description == "" || seen["d:"+e.Description] {
				continue
			}
			seen["d:"+e.Description] = true
			out = append(out, AutocompleteItem{
				Text:        e.Description,
				ProjectID:   e.ProjectID,
				TaskID:      e.TaskID,
				WorkspaceID: e.WorkspaceID,
				Billable:    e.Billable,
			})
		}
	}
	if includeProjects {
		for _, p := range c.graph.AllProjects() {
			if !p.Active || seen["p:"+p.Name] {
				continue
			}
			seen["p:"+p.Name] = true
			out = append(out, AutocompleteItem{
				Text:        p.Name,
				ProjectID:   p.LocalID,
				WorkspaceID: p.WorkspaceID,
				Billable:    p.Billable,
			})
		}
	}
	if includeTasks {
		for _, t := range c.graph.AllTasks() {
			if !t.Active || seen["t:"+t.Name] {
				continue
			}
			seen["t:"+t.Name] = true
			out = append(out, AutocompleteItem{
				Text:        t.Name,
				TaskID:      t.LocalID,
				ProjectID:   t.ProjectID,
				WorkspaceID: t.WorkspaceID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}
