package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/session"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/syncengine"
	"github.com/loctrack/agent/internal/transport"
)

// failingDoer never reaches a network; every request fails immediately,
// used to exercise the dispatcher's async-error reporting path without a
// real HTTP stack.
type failingDoer struct{}

func (failingDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("dial: connection refused in test")
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *graph.RelatedData) {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g := graph.New()
	log := logging.NewSlogLogger(slog.Default())
	sess := session.New(s, g, nil, log)
	client := transport.New("https://api.example.com", failingDoer{}, sess.Token)
	engine := syncengine.New(s, g, sess, client, log)

	recording := false
	d := New(engine, sess, log, func() bool { return recording })
	return d, g
}

func TestEmit_DeliversToRegisteredListener(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var got []Change
	d.SetListener(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go d.runFanOut(ctx)
	defer cancel()

	d.Emit(Change{ModelType: "time_entry", Kind: "insert", GUID: "g1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "g1", got[0].GUID)
}

func TestEmit_DoesNotBlockWhenBufferFull(t *testing.T) {
	d, _ := newTestDispatcher(t)
	for i := 0; i < changeBufSize+10; i++ {
		d.Emit(Change{GUID: "overflow"})
	}
	// reaching here without deadlocking is the assertion.
}

func TestWithWriterLock_SerializesCallers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = d.WithWriterLock(func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 5)
}

func TestDoPush_ReportsErrorToListener(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.WithWriterLock(func() error {
		_, err := d.engine.Start(ctx, "pending", "", 0, 0)
		return err
	}))

	var mu sync.Mutex
	var got error
	d.SetErrorListener(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = err
	})

	d.doPush(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, got, "push against a failing Doer must fail and report through the error listener")
}

func TestRequestPush_IsCoalesced(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.RequestPush()
	d.RequestPush()
	d.RequestPush()
	select {
	case d.pushSignal <- struct{}{}:
		t.Fatal("expected signal channel to already hold a pending request")
	default:
	}
}
