package syncengine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/model"
	"github.com/loctrack/agent/internal/session"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/transport"
)

// scriptedDoer replays a fixed sequence of responses, one per call, and
// records every request body for assertions.
type scriptedDoer struct {
	mu        sync.Mutex
	responses []string
	statuses  []int
	call      int
	requests  []string
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	d.requests = append(d.requests, body)

	i := d.call
	d.call++
	status := http.StatusOK
	if i < len(d.statuses) {
		status = d.statuses[i]
	}
	respBody := "{}"
	if i < len(d.responses) {
		respBody = d.responses[i]
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(respBody)),
		Header:     make(http.Header),
	}, nil
}

type testEnv struct {
	engine *Engine
	store  *store.Store
	graph  *graph.RelatedData
	sess   *session.Session
	doer   *scriptedDoer
	ticks  int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g := graph.New()
	log := logging.NewSlogLogger(slog.Default())
	doer := &scriptedDoer{}

	sess := session.New(s, g, nil, log)
	require.NoError(t, sess.SetAPIToken(context.Background(), "tok"))

	client := transport.New("https://api.example.com", doer, sess.Token)
	engine := New(s, g, sess, client, log)

	env := &testEnv{engine: engine, store: s, graph: g, sess: sess, doer: doer, ticks: 1000}
	engine.now = func() int64 {
		env.ticks++
		return env.ticks
	}
	guidN := 0
	engine.newGUID = func() string {
		guidN++
		return "guid-" + string(rune('a'+guidN))
	}
	return env
}

func TestMergeClient_InsertsUnknownRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.engine.mergeClient(ctx, &model.Client{RemoteID: 1, GUID: "c1", WorkspaceID: 1, Name: "Acme"})
	require.NoError(t, err)

	got := env.graph.GetClientByGUID("c1")
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)
}

func TestMergeClient_DirtyLocalWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := &model.Client{GUID: "c1", WorkspaceID: 1, Name: "Local Name", UIModifiedAt: 500}
	require.NoError(t, env.store.Clients.Insert(ctx, local))
	env.graph.PutClient(local)

	err := env.engine.mergeClient(ctx, &model.Client{RemoteID: 9, GUID: "c1", WorkspaceID: 1, Name: "Server Name"})
	require.NoError(t, err)

	got := env.graph.GetClientByGUID("c1")
	require.NotNil(t, got)
	assert.Equal(t, "Local Name", got.Name)
	assert.Equal(t, int64(0), got.RemoteID)
}

func TestMergeClient_CleanLocalOverwritten(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := &model.Client{GUID: "c1", WorkspaceID: 1, Name: "Stale"}
	require.NoError(t, env.store.Clients.Insert(ctx, local))
	env.graph.PutClient(local)

	err := env.engine.mergeClient(ctx, &model.Client{RemoteID: 9, GUID: "c1", WorkspaceID: 1, Name: "Fresh"})
	require.NoError(t, err)

	got := env.graph.GetClientByGUID("c1")
	require.NotNil(t, got)
	assert.Equal(t, "Fresh", got.Name)
	assert.Equal(t, int64(9), got.RemoteID)
}

func TestMergeTimeEntry_ServerDeletedPurgesCleanLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := &model.TimeEntry{GUID: "e1", WorkspaceID: 1, RemoteID: 5, Start: 10, Stop: 20, DurationInSeconds: 10}
	require.NoError(t, env.store.TimeEntries.Insert(ctx, local))
	env.graph.PutTimeEntry(local)

	err := env.engine.mergeTimeEntry(ctx, &model.TimeEntry{GUID: "e1", RemoteID: 5, ServerDeletedAt: 999})
	require.NoError(t, err)

	assert.Nil(t, env.graph.GetTimeEntryByGUID("e1"))
	got, err := env.store.TimeEntries.GetByGUID(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMergeTimeEntry_ServerDeletedTombstonesDirtyLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := &model.TimeEntry{GUID: "e1", WorkspaceID: 1, RemoteID: 5, Start: 10, Stop: 20, DurationInSeconds: 10, UIModifiedAt: 50}
	require.NoError(t, env.store.TimeEntries.Insert(ctx, local))
	env.graph.PutTimeEntry(local)

	err := env.engine.mergeTimeEntry(ctx, &model.TimeEntry{GUID: "e1", RemoteID: 5, ServerDeletedAt: 999})
	require.NoError(t, err)

	got := env.graph.GetTimeEntryByGUID("e1")
	require.NotNil(t, got)
	assert.Equal(t, int64(999), got.ServerDeletedAt)
}

func TestStartAndStop_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "write spec", "", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entry.GUID)
	assert.True(t, entry.IsRunning())
	assert.True(t, entry.IsDirty())
	assert.Equal(t, int64(0), entry.RemoteID)

	running := env.engine.runningEntries()
	require.Len(t, running, 1)

	stopped, err := env.engine.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.False(t, stopped[0].IsRunning())
	assert.True(t, stopped[0].IsDirty())
	assert.Greater(t, stopped[0].DurationInSeconds, int64(0))
}

func TestStart_StopsPreviouslyRunningEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.engine.Start(ctx, "first", "", 0, 0)
	require.NoError(t, err)

	_, err = env.engine.Start(ctx, "second", "", 0, 0)
	require.NoError(t, err)

	got := env.graph.GetTimeEntryByGUID(first.GUID)
	require.NotNil(t, got)
	assert.False(t, got.IsRunning())

	running := env.engine.runningEntries()
	require.Len(t, running, 1)
	assert.Equal(t, "second", running[0].Description)
}

func TestSplitAt_ProducesTwoRunningInSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "deep work", "", 0, 7)
	require.NoError(t, err)
	entry.Start = 1000
	require.NoError(t, env.store.TimeEntries.Update(ctx, entry))
	env.graph.PutTimeEntry(entry)

	stopped, started, err := env.engine.SplitAt(ctx, 1030)
	require.NoError(t, err)

	assert.Equal(t, int64(1030), stopped.Stop)
	assert.False(t, stopped.IsRunning())
	assert.True(t, started.IsRunning())
	assert.Equal(t, int64(1030), started.Start)
	assert.Equal(t, int64(7), started.ProjectID)

	running := env.engine.runningEntries()
	require.Len(t, running, 1)
	assert.Equal(t, started.GUID, running[0].GUID)
}

func TestContinueLatest_EmptyGraphReportsNotFound(t *testing.T) {
	env := newTestEnv(t)
	entry, wasFound, err := env.engine.ContinueLatest(context.Background())
	require.NoError(t, err)
	assert.False(t, wasFound)
	assert.Nil(t, entry)
}

func TestSetDescription_NoopWhenUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "same", "", 0, 0)
	require.NoError(t, err)
	before := entry.UIModifiedAt

	got, err := env.engine.SetDescription(ctx, entry.GUID, "same")
	require.NoError(t, err)
	assert.Equal(t, before, got.UIModifiedAt)

	got, err = env.engine.SetDescription(ctx, entry.GUID, "different")
	require.NoError(t, err)
	assert.Equal(t, "different", got.Description)
	assert.Greater(t, got.UIModifiedAt, before)
}

func TestDelete_NeverPushedEntryIsPurgedByNextPush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "scratch", "", 0, 0)
	require.NoError(t, err)
	_, err = env.engine.Stop(ctx)
	require.NoError(t, err)

	require.NoError(t, env.engine.Delete(ctx, entry.GUID))

	require.NoError(t, env.engine.Push(ctx))

	assert.Nil(t, env.graph.GetTimeEntryByGUID(entry.GUID))
	assert.Empty(t, env.doer.requests)
}

func TestPush_SuccessClearsDirtyAndAssignsRemoteID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "billable work", "", 0, 0)
	require.NoError(t, err)
	_, err = env.engine.Stop(ctx)
	require.NoError(t, err)

	env.doer.statuses = []int{200}
	env.doer.responses = []string{`[{"status":200,"guid":"` + entry.GUID + `","body":{"data":{"id":42}}}]`}

	require.NoError(t, env.engine.Push(ctx))

	got := env.graph.GetTimeEntryByGUID(entry.GUID)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.RemoteID)
	assert.False(t, got.IsDirty())
}

func TestPush_ValidationErrorLeavesEntryDirty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.engine.Start(ctx, "bad data", "", 0, 0)
	require.NoError(t, err)
	_, err = env.engine.Stop(ctx)
	require.NoError(t, err)

	env.doer.statuses = []int{200}
	env.doer.responses = []string{`[{"status":422,"guid":"` + entry.GUID + `","body":{"message":"description too long"}}]`}

	require.NoError(t, env.engine.Push(ctx))

	got := env.graph.GetTimeEntryByGUID(entry.GUID)
	require.NotNil(t, got)
	assert.True(t, got.IsDirty())
	assert.Equal(t, "description too long", got.ValidationError)
}

func TestPush_NotFoundDropsLocalChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &model.TimeEntry{GUID: "e1", RemoteID: 5, Start: 10, Stop: 20, DurationInSeconds: 10, UIModifiedAt: 50}
	require.NoError(t, env.store.TimeEntries.Insert(ctx, entry))
	env.graph.PutTimeEntry(entry)

	env.doer.statuses = []int{200}
	env.doer.responses = []string{`[{"status":404,"guid":"e1"}]`}

	require.NoError(t, env.engine.Push(ctx))
	assert.Nil(t, env.graph.GetTimeEntryByGUID("e1"))
}

func TestPush_NothingPushableIsANoop(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.Push(context.Background()))
	assert.Empty(t, env.doer.requests)
}

func TestFullPull_MergesAndAdvancesSinceCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.doer.responses = []string{`{
		"since": 123,
		"data": {
			"workspaces": [{"id": 1, "name": "Acme", "premium": true}],
			"clients": [{"id": 10, "guid": "c1", "wid": 1, "name": "Client A"}],
			"projects": [],
			"tasks": [],
			"tags": [],
			"time_entries": [{"id": 99, "guid": "e1", "wid": 1, "description": "pulled", "start": "2024-01-01T00:00:00Z", "duration": 60}]
		}
	}`}

	require.NoError(t, env.engine.FullPull(ctx))

	assert.Equal(t, int64(123), env.sess.Since())
	assert.True(t, env.sess.HasPremiumWorkspaces())
	assert.NotNil(t, env.graph.GetClientByGUID("c1"))
	entry := env.graph.GetTimeEntryByGUID("e1")
	require.NotNil(t, entry)
	assert.Equal(t, "pulled", entry.Description)
	assert.Equal(t, int64(99), entry.RemoteID)
}

func TestPartialPull_UsesStoredSinceCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.sess.SetSince(ctx, 555))

	env.doer.responses = []string{`{"since": 600, "data": {"workspaces": [], "clients": [], "projects": [], "tasks": [], "tags": [], "time_entries": []}}`}
	require.NoError(t, env.engine.PartialPull(ctx))

	require.Len(t, env.doer.requests, 1)
	assert.Equal(t, int64(600), env.sess.Since())
}
