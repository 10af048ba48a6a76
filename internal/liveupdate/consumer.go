// Package liveupdate consumes the remote service's websocket feed: one
// connection per session, authenticated by sending the API token as the
// first frame, replying to pings, and reconnecting with backoff when the
// connection drops. It never touches the graph directly — on an "update"
// frame it asks the Notifier to schedule a partial pull, following the
// teacher's ticker-goroutine idiom (internal/client/cli.App.
// StartOnlineStatusWatcher) generalized from a polling ping to a
// long-lived streamed connection.
package liveupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/transport"
)

const (
	pingWait    = 5 * time.Second
	idleTimeout = 90 * time.Second
)

// TokenSource returns the current API token, used to authenticate the
// first frame after connecting.
type TokenSource func() string

// Notifier is the seam into the dispatcher: a partial pull request and a
// token-invalidation signal, both fire-and-forget.
type Notifier interface {
	RequestPartialPull()
	InvalidateToken(ctx context.Context) error
}

type frame struct {
	Type string `json:"type"`
}

// Consumer owns the websocket connection lifecycle.
type Consumer struct {
	url      string
	token    TokenSource
	notifier Notifier
	log      logging.Logger
	dialer   *websocket.Dialer
}

// New returns a Consumer that dials url (e.g. "wss://stream.example.com")
// on Run.
func New(url string, token TokenSource, notifier Notifier, log logging.Logger) *Consumer {
	return &Consumer{
		url:      url,
		token:    token,
		notifier: notifier,
		log:      log,
		dialer:   websocket.DefaultDialer,
	}
}

// Run connects and reconnects until ctx is cancelled, using the same
// exponential backoff schedule as the sync engine's push retry.
func (c *Consumer) Run(ctx context.Context) {
	b := transport.NewBackOff()
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectAndServe(ctx, b)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn(ctx, "liveupdate: connection lost, reconnecting", "err", err)
		}
		wait := b.NextBackOff()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) connectAndServe(ctx context.Context, b backoff.BackOff) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			if ierr := c.notifier.InvalidateToken(ctx); ierr != nil {
				c.log.Error(ctx, "liveupdate: failed to invalidate token", "err", ierr)
			}
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(c.token())); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}

	resetDeadline := func() error { return conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	if err := resetDeadline(); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		b.Reset()
		if err := resetDeadline(); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn(ctx, "liveupdate: malformed frame, ignoring", "err", err)
			continue
		}

		switch f.Type {
		case "ping":
			if err := c.replyPong(conn); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case "update":
			c.notifier.RequestPartialPull()
		default:
			c.log.Warn(ctx, "liveupdate: unrecognized frame type", "type", f.Type)
		}
	}
}

func (c *Consumer) replyPong(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(pingWait))
	encoded, err := json.Marshal(frame{Type: "pong"})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, encoded)
}
