// Package graph holds RelatedData, the agent's in-memory replica of the
// entity graph: workspaces, clients, projects, tasks, tags and time
// entries, indexed by local id and by GUID for O(1) lookup. The sync
// engine and the facade read and mutate it under the dispatcher's single
// writer lock; this package itself adds its own RWMutex so it stays safe
// to use from a future caller that does not go through the dispatcher
// (tests, mainly).
package graph

import (
	"sort"
	"strings"
	"sync"

	"github.com/loctrack/agent/internal/model"
)

// RelatedData is the full local replica, kept in memory and persisted
// incrementally to the store as it changes.
type RelatedData struct {
	mu sync.RWMutex

	workspacesByID map[int64]*model.Workspace

	clientsByID   map[int64]*model.Client
	clientsByGUID map[string]*model.Client

	projectsByID   map[int64]*model.Project
	projectsByGUID map[string]*model.Project

	tasksByID map[int64]*model.Task

	tagsByID   map[int64]*model.Tag
	tagsByGUID map[string]*model.Tag

	timeEntriesByID   map[int64]*model.TimeEntry
	timeEntriesByGUID map[string]*model.TimeEntry
}

// New returns an empty graph.
func New() *RelatedData {
	return &RelatedData{
		workspacesByID:    make(map[int64]*model.Workspace),
		clientsByID:       make(map[int64]*model.Client),
		clientsByGUID:     make(map[string]*model.Client),
		projectsByID:      make(map[int64]*model.Project),
		projectsByGUID:    make(map[string]*model.Project),
		tasksByID:         make(map[int64]*model.Task),
		tagsByID:          make(map[int64]*model.Tag),
		tagsByGUID:        make(map[string]*model.Tag),
		timeEntriesByID:   make(map[int64]*model.TimeEntry),
		timeEntriesByGUID: make(map[string]*model.TimeEntry),
	}
}

// PutWorkspace indexes (or re-indexes) a workspace.
func (g *RelatedData) PutWorkspace(w *model.Workspace) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.workspacesByID[w.LocalID] = w
}

// PutClient indexes (or re-indexes) a client by both its id and GUID.
func (g *RelatedData) PutClient(c *model.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clientsByID[c.LocalID] = c
	if c.GUID != "" {
		g.clientsByGUID[c.GUID] = c
	}
}

// PutProject indexes (or re-indexes) a project by both its id and GUID.
func (g *RelatedData) PutProject(p *model.Project) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.projectsByID[p.LocalID] = p
	if p.GUID != "" {
		g.projectsByGUID[p.GUID] = p
	}
}

// PutTask indexes (or re-indexes) a task.
func (g *RelatedData) PutTask(t *model.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasksByID[t.LocalID] = t
}

// PutTag indexes (or re-indexes) a tag by both its id and GUID.
func (g *RelatedData) PutTag(t *model.Tag) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tagsByID[t.LocalID] = t
	if t.GUID != "" {
		g.tagsByGUID[t.GUID] = t
	}
}

// PutTimeEntry indexes (or re-indexes) a time entry by both its id and GUID.
func (g *RelatedData) PutTimeEntry(e *model.TimeEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeEntriesByID[e.LocalID] = e
	if e.GUID != "" {
		g.timeEntriesByGUID[e.GUID] = e
	}
}

// RemoveTimeEntry drops a time entry from both indexes, used once a
// server-confirmed deletion is settled and the row purged from the store.
func (g *RelatedData) RemoveTimeEntry(e *model.TimeEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.timeEntriesByID, e.LocalID)
	if e.GUID != "" {
		delete(g.timeEntriesByGUID, e.GUID)
	}
}

// Reset empties the graph in place, used by sign-out/wipe.
func (g *RelatedData) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.workspacesByID = make(map[int64]*model.Workspace)
	g.clientsByID = make(map[int64]*model.Client)
	g.clientsByGUID = make(map[string]*model.Client)
	g.projectsByID = make(map[int64]*model.Project)
	g.projectsByGUID = make(map[string]*model.Project)
	g.tasksByID = make(map[int64]*model.Task)
	g.tagsByID = make(map[int64]*model.Tag)
	g.tagsByGUID = make(map[string]*model.Tag)
	g.timeEntriesByID = make(map[int64]*model.TimeEntry)
	g.timeEntriesByGUID = make(map[string]*model.TimeEntry)
}

func (g *RelatedData) GetWorkspaceByID(id int64) *model.Workspace {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.workspacesByID[id]
}

func (g *RelatedData) GetClientByID(id int64) *model.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clientsByID[id]
}

func (g *RelatedData) GetClientByGUID(guid string) *model.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clientsByGUID[guid]
}

func (g *RelatedData) GetProjectByID(id int64) *model.Project {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.projectsByID[id]
}

func (g *RelatedData) GetProjectByGUID(guid string) *model.Project {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.projectsByGUID[guid]
}

// GetProjectByName returns the first project in workspaceID with an
// exact name match, or nil.
func (g *RelatedData) GetProjectByName(workspaceID int64, name string) *model.Project {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.projectsByID {
		if p.WorkspaceID == workspaceID && p.Name == name {
			return p
		}
	}
	return nil
}

func (g *RelatedData) GetTaskByID(id int64) *model.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tasksByID[id]
}

func (g *RelatedData) GetTagByID(id int64) *model.Tag {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tagsByID[id]
}

func (g *RelatedData) GetTagByGUID(guid string) *model.Tag {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tagsByGUID[guid]
}

func (g *RelatedData) GetTimeEntryByID(id int64) *model.TimeEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.timeEntriesByID[id]
}

func (g *RelatedData) GetTimeEntryByGUID(guid string) *model.TimeEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.timeEntriesByGUID[guid]
}

// AllProjects returns every known project, unordered.
func (g *RelatedData) AllProjects() []*model.Project {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.Project, 0, len(g.projectsByID))
	for _, p := range g.projectsByID {
		out = append(out, p)
	}
	return out
}

// AllTasks returns every known task, unordered.
func (g *RelatedData) AllTasks() []*model.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.Task, 0, len(g.tasksByID))
	for _, t := range g.tasksByID {
		out = append(out, t)
	}
	return out
}

// AllTimeEntries returns every known time entry, unordered.
func (g *RelatedData) AllTimeEntries() []*model.TimeEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.TimeEntry, 0, len(g.timeEntriesByID))
	for _, e := range g.timeEntriesByID {
		out = append(out, e)
	}
	return out
}

// SortTimeEntriesByStart stable-sorts entries descending by Start.
func SortTimeEntriesByStart(entries []*model.TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start > entries[j].Start
	})
}

// CollectPushable returns every time entry that NeedsPush, i.e. is
// dirty, unpushed, or tombstoned but not yet server-confirmed deleted.
func (g *RelatedData) CollectPushable() []*model.TimeEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*model.TimeEntry
	for _, e := range g.timeEntriesByID {
		if e.NeedsPush() {
			out = append(out, e)
		}
	}
	return out
}

// TagsSorted returns every known tag sorted lexicographically by name.
func (g *RelatedData) TagsSorted() []*model.Tag {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.Tag, 0, len(g.tagsByID))
	for _, t := range g.tagsByID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// JoinTaskName renders "Task. Project. Client", omitting any missing
// part and collapsing the separators that would otherwise double up.
func JoinTaskName(task *model.Task, project *model.Project, client *model.Client) string {
	var parts []string
	if task != nil && task.Name != "" {
		parts = append(parts, task.Name)
	}
	if project != nil && project.Name != "" {
		parts = append(parts, project.Name)
	}
	if client != nil && client.Name != "" {
		parts = append(parts, client.Name)
	}
	return strings.Join(parts, ". ")
}
