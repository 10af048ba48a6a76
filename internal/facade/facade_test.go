package facade

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

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/config"
	"github.com/loctrack/agent/internal/dispatcher"
	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/model"
	"github.com/loctrack/agent/internal/session"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/syncengine"
	"github.com/loctrack/agent/internal/transport"
)

// scriptedDoer replays a fixed sequence of responses and statuses, one per
// request, in call order. Unlike syncengine's test doer it records no
// request bodies.
type scriptedDoer struct {
	mu        sync.Mutex
	responses []string
	statuses  []int
	call      int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.call
	d.call++
	status := http.StatusOK
	if i < len(d.statuses) {
		status = d.statuses[i]
	}
	body := "{}"
	if i < len(d.responses) {
		body = d.responses[i]
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header)}, nil
}

// newTestContext builds a Context wired directly to an in-memory store,
// bypassing Init's store.Open/background workers so tests run
// synchronously and never touch a real network or websocket.
func newTestContext(t *testing.T) (*Context, *scriptedDoer) {
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
	sess.SetClient(client)

	engine := syncengine.New(s, g, sess, client, log)
	disp := dispatcher.New(engine, sess, log, func() bool { return false })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	c := &Context{
		cfg:        cfg,
		store:      s,
		graph:      g,
		session:    sess,
		engine:     engine,
		dispatcher: disp,
	}
	return c, doer
}

func TestStartStop_RoundTrip(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	entry, err := c.Start(ctx, "write spec", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "write spec", entry.Description)
	assert.True(t, entry.IsRunning())
	assert.Equal(t, int64(0), entry.RemoteID)
	assert.True(t, entry.IsDirty())

	stopped, err := c.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.False(t, stopped[0].IsRunning())
	assert.True(t, stopped[0].IsDirty())
}

func TestStart_RequiresLogin(t *testing.T) {
	c, _ := newTestContext(t)
	require.NoError(t, c.session.InvalidateToken(context.Background()))

	_, err := c.Start(context.Background(), "x", "", 0, 0)
	assert.ErrorIs(t, err, apperr.ErrLoggedOut)
	assert.Equal(t, "you are not logged in", c.ErrorMessage(err))
}

func TestSync_PushesDirtyEntryAndAssignsRemoteID(t *testing.T) {
	c, doer := newTestContext(t)
	ctx := context.Background()

	entry, err := c.Start(ctx, "write spec", "", 0, 0)
	require.NoError(t, err)
	_, err = c.Stop(ctx)
	require.NoError(t, err)

	doer.responses = []string{
		`{"since":1}`,
		`[{"status":200,"guid":"` + entry.GUID + `","body":{"data":{"id":42}}}]`,
	}
	doer.statuses = []int{200, 200}

	require.NoError(t, c.Sync(ctx))

	got := c.graph.GetTimeEntryByGUID(entry.GUID)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.RemoteID)
	assert.Equal(t, int64(0), got.UIModifiedAt)
	assert.Empty(t, c.PushableModels())
}

func TestSetTimeEntryDescription_LastWriteWinsOverPull(t *testing.T) {
	c, doer := newTestContext(t)
	ctx := context.Background()

	entry := &model.TimeEntry{GUID: "g1", RemoteID: 7, Description: "old", Start: 1000}
	require.NoError(t, c.store.TimeEntries.Insert(ctx, entry))
	c.graph.PutTimeEntry(entry)

	_, err := c.SetTimeEntryDescription(ctx, "g1", "local")
	require.NoError(t, err)

	doer.responses = []string{`{"since":2000,"data":{"time_entries":[{"id":7,"guid":"g1","description":"server","start":"2024-01-01T00:16:40Z"}]}}`}
	doer.statuses = []int{200}
	require.NoError(t, c.engine.PartialPull(ctx))

	got := c.graph.GetTimeEntryByGUID("g1")
	require.NotNil(t, got)
	assert.Equal(t, "local", got.Description)
	assert.True(t, got.IsDirty())
}

func TestDeleteTimeEntry_TombstonesThenPurgesAfterPush(t *testing.T) {
	c, doer := newTestContext(t)
	ctx := context.Background()

	entry := &model.TimeEntry{GUID: "g9", RemoteID: 9, Start: 1000, Stop: 1060, DurationInSeconds: 60}
	require.NoError(t, c.store.TimeEntries.Insert(ctx, entry))
	c.graph.PutTimeEntry(entry)

	require.NoError(t, c.DeleteTimeEntry(ctx, "g9"))

	tombstoned := c.graph.GetTimeEntryByGUID("g9")
	require.NotNil(t, tombstoned)
	assert.True(t, tombstoned.IsTombstoned())
	assert.Contains(t, c.PushableModels(), tombstoned)

	doer.statuses = []int{200}
	doer.responses = []string{`[{"status":200,"guid":"g9"}]`}
	require.NoError(t, c.engine.Push(ctx))

	assert.Nil(t, c.graph.GetTimeEntryByGUID("g9"))
}

func TestSplitRunningTimeEntryAt_StopsThenStartsAdjacent(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	entry, err := c.Start(ctx, "write spec", "", 0, 0)
	require.NoError(t, err)

	splitAt := entry.Start + 300
	stopped, started, err := c.SplitRunningTimeEntryAt(ctx, splitAt)
	require.NoError(t, err)
	require.NotNil(t, stopped)
	require.NotNil(t, started)

	assert.False(t, stopped.IsRunning())
	assert.Equal(t, splitAt, stopped.Stop)
	assert.True(t, started.IsRunning())
	assert.Equal(t, splitAt, started.Start)
	assert.Equal(t, entry.Description, started.Description)
	assert.NotEqual(t, stopped.GUID, started.GUID)
}

func TestContinueLatest_EmptyGraphReportsNotFound(t *testing.T) {
	c, _ := newTestContext(t)
	entry, wasFound, err := c.ContinueLatest(context.Background())
	require.NoError(t, err)
	assert.False(t, wasFound)
	assert.Nil(t, entry)
}

func TestIsNetworkingError_MatchesSpecSubstringTable(t *testing.T) {
	c, _ := newTestContext(t)
	assert.True(t, c.IsNetworkingError("Host not found: x"))
	assert.False(t, c.IsNetworkingError("Missing GUID"))
}

func TestParseDurationStringIntoSeconds(t *testing.T) {
	c, _ := newTestContext(t)
	assert.Equal(t, int64(90), c.ParseDurationStringIntoSeconds("1:30"))
}

func TestTimeEntryViewItems_JoinsTaskProjectClient(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	client := &model.Client{LocalID: 1, Name: "Acme"}
	c.graph.PutClient(client)
	project := &model.Project{LocalID: 1, ClientID: 1, Name: "Website"}
	c.graph.PutProject(project)

	entry := &model.TimeEntry{GUID: "g1", ProjectID: 1, Description: "desc", Start: 1000, Stop: 1060, DurationInSeconds: 60}
	require.NoError(t, c.store.TimeEntries.Insert(ctx, entry))
	c.graph.PutTimeEntry(entry)

	items := c.TimeEntryViewItems()
	require.Len(t, items, 1)
	assert.Equal(t, "Website. Acme", items[0].TaskProjectClient)
	assert.Equal(t, "0:01:00", items[0].FormattedDuration)
}
