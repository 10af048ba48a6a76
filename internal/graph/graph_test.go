package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loctrack/agent/internal/model"
)

func TestLookupsByIDAndGUID(t *testing.T) {
	g := New()
	c := &model.Client{LocalID: 1, GUID: "c-guid", Name: "Acme"}
	g.PutClient(c)

	assert.Same(t, c, g.GetClientByID(1))
	assert.Same(t, c, g.GetClientByGUID("c-guid"))
	assert.Nil(t, g.GetClientByGUID("missing"))
}

func TestGetProjectByName(t *testing.T) {
	g := New()
	g.PutProject(&model.Project{LocalID: 1, WorkspaceID: 1, Name: "Website"})
	g.PutProject(&model.Project{LocalID: 2, WorkspaceID: 2, Name: "Website"})

	got := g.GetProjectByName(2, "Website")
	assert.NotNil(t, got)
	assert.Equal(t, int64(2), got.LocalID)
	assert.Nil(t, g.GetProjectByName(1, "Nope"))
}

func TestSortTimeEntriesByStart_DescendingStable(t *testing.T) {
	entries := []*model.TimeEntry{
		{LocalID: 1, Start: 100},
		{LocalID: 2, Start: 300},
		{LocalID: 3, Start: 200},
		{LocalID: 4, Start: 300},
	}
	SortTimeEntriesByStart(entries)
	var starts []int64
	for _, e := range entries {
		starts = append(starts, e.Start)
	}
	assert.Equal(t, []int64{300, 300, 200, 100}, starts)
	// stability: the two entries with Start=300 keep their relative order
	assert.Equal(t, int64(2), entries[0].LocalID)
	assert.Equal(t, int64(4), entries[1].LocalID)
}

func TestCollectPushable(t *testing.T) {
	g := New()
	g.PutTimeEntry(&model.TimeEntry{LocalID: 1, GUID: "a", RemoteID: 5, UIModifiedAt: 0})            // clean, pushed: skip
	g.PutTimeEntry(&model.TimeEntry{LocalID: 2, GUID: "b", RemoteID: 0, UIModifiedAt: 0})            // never pushed: include
	g.PutTimeEntry(&model.TimeEntry{LocalID: 3, GUID: "c", RemoteID: 5, UIModifiedAt: 10})           // dirty: include
	g.PutTimeEntry(&model.TimeEntry{LocalID: 4, GUID: "d", RemoteID: 5, LocalDeletedAt: 10})         // tombstoned: include
	g.PutTimeEntry(&model.TimeEntry{LocalID: 5, GUID: "e", RemoteID: 5, ServerDeletedAt: 10, UIModifiedAt: 10}) // server-confirmed: skip

	got := g.CollectPushable()
	ids := map[int64]bool{}
	for _, e := range got {
		ids[e.LocalID] = true
	}
	assert.Equal(t, map[int64]bool{2: true, 3: true, 4: true}, ids)
}

func TestTagsSorted(t *testing.T) {
	g := New()
	g.PutTag(&model.Tag{LocalID: 1, GUID: "g1", Name: "zebra"})
	g.PutTag(&model.Tag{LocalID: 2, GUID: "g2", Name: "apple"})
	g.PutTag(&model.Tag{LocalID: 3, GUID: "g3", Name: "mango"})

	got := g.TagsSorted()
	var names []string
	for _, t := range got {
		names = append(names, t.Name)
	}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, names)
}

func TestJoinTaskName(t *testing.T) {
	task := &model.Task{Name: "Design"}
	project := &model.Project{Name: "Website"}
	client := &model.Client{Name: "Acme"}

	assert.Equal(t, "Design. Website. Acme", JoinTaskName(task, project, client))
	assert.Equal(t, "Website. Acme", JoinTaskName(nil, project, client))
	assert.Equal(t, "Acme", JoinTaskName(nil, nil, client))
	assert.Equal(t, "", JoinTaskName(nil, nil, nil))
}

func TestRemoveTimeEntry(t *testing.T) {
	g := New()
	e := &model.TimeEntry{LocalID: 1, GUID: "x"}
	g.PutTimeEntry(e)
	assert.NotNil(t, g.GetTimeEntryByGUID("x"))

	g.RemoveTimeEntry(e)
	assert.Nil(t, g.GetTimeEntryByGUID("x"))
	assert.Nil(t, g.GetTimeEntryByID(1))
}
