package liveupdate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loctrack/agent/internal/logging"
)

type fakeNotifier struct {
	mu               sync.Mutex
	pulls            int
	invalidateCalled bool
}

func (f *fakeNotifier) RequestPartialPull() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
}

func (f *fakeNotifier) InvalidateToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidateCalled = true
	return nil
}

func (f *fakeNotifier) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls
}

var upgrader = websocket.Upgrader{}

func wsHandler(handle func(*websocket.Conn)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if handle != nil {
			handle(conn)
		}
	}
}

func toWS(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestConsumer_UpdateFrameTriggersPartialPull(t *testing.T) {
	var authFrame string
	var mu sync.Mutex

	srv := httptest.NewServer(wsHandler(func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		mu.Lock()
		authFrame = string(msg)
		mu.Unlock()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustJSON(frame{Type: "update"})))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	notifier := &fakeNotifier{}
	consumer := New(toWS(srv.URL), func() string { return "tok-123" }, notifier, logging.NewSlogLogger(slog.Default()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	consumer.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "tok-123", authFrame)
	assert.GreaterOrEqual(t, notifier.pullCount(), 1)
}

func TestConsumer_PingFrameGetsPongReply(t *testing.T) {
	pongReceived := make(chan struct{}, 1)

	srv := httptest.NewServer(wsHandler(func(conn *websocket.Conn) {
		_, _, err := conn.ReadMessage() // auth frame
		require.NoError(t, err)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustJSON(frame{Type: "ping"})))

		_, msg, err := conn.ReadMessage()
		if err == nil {
			var f frame
			_ = json.Unmarshal(msg, &f)
			if f.Type == "pong" {
				pongReceived <- struct{}{}
			}
		}
	}))
	defer srv.Close()

	notifier := &fakeNotifier{}
	consumer := New(toWS(srv.URL), func() string { return "tok" }, notifier, logging.NewSlogLogger(slog.Default()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go consumer.Run(ctx)

	select {
	case <-pongReceived:
	case <-time.After(400 * time.Millisecond):
		t.Fatal("did not receive pong reply in time")
	}
}

func TestConsumer_ClosedServerDoesNotHangRun(t *testing.T) {
	srv := httptest.NewServer(wsHandler(nil))
	srv.Close()

	notifier := &fakeNotifier{}
	consumer := New(toWS(srv.URL), func() string { return "tok" }, notifier, logging.NewSlogLogger(slog.Default()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	consumer.Run(ctx) // exercises the dial-failure + backoff path without hanging past the deadline
}
