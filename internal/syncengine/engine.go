// Package syncengine reconciles the local graph.RelatedData with the
// remote service: full and partial pulls, the batch push protocol, and
// the time-entry state machine transitions (start/stop/continue/split)
// that the spec places under the sync engine's authority since they are
// what decides whether an entry needs pushing.
package syncengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loctrack/agent/internal/graph"
	"github.com/loctrack/agent/internal/logging"
	"github.com/loctrack/agent/internal/session"
	"github.com/loctrack/agent/internal/store"
	"github.com/loctrack/agent/internal/transport"
)

// Engine owns the pull/push protocols against the remote service and the
// time-entry mutation operations that decide what ends up push-pending.
// Callers are expected to hold the dispatcher's writer lock around every
// call that touches the graph; Engine itself does no locking.
type Engine struct {
	store   *store.Store
	graph   *graph.RelatedData
	session *session.Session
	client  *transport.Client
	log     logging.Logger

	// newGUID is overridden in tests for deterministic output.
	newGUID func() string
	// now is overridden in tests for deterministic timestamps.
	now func() int64
}

// New returns an Engine wired to the given collaborators.
func New(s *store.Store, g *graph.RelatedData, sess *session.Session, client *transport.Client, log logging.Logger) *Engine {
	return &Engine{
		store:   s,
		graph:   g,
		session: sess,
		client:  client,
		log:     log,
		newGUID: func() string { return uuid.NewString() },
		now:     nowUnix,
	}
}

type pullResponse struct {
	Since int64 `json:"since"`
	Data  struct {
		Workspaces  []wireWorkspace  `json:"workspaces"`
		Clients     []wireClient     `json:"clients"`
		Projects    []wireProject    `json:"projects"`
		Tasks       []wireTask       `json:"tasks"`
		Tags        []wireTag        `json:"tags"`
		TimeEntries []wireTimeEntry  `json:"time_entries"`
	} `json:"data"`
}

// FullPull fetches the entire graph (since=0) and merges it, holding the
// writer lock for the whole call. Used by Context.Sync (a foreground,
// user-initiated call) and tests; the dispatcher's pull worker uses
// FetchPull/MergePull directly so it can release the lock around the
// network round trip.
func (e *Engine) FullPull(ctx context.Context) error {
	return e.pull(ctx, 0)
}

// PartialPull fetches only what changed since the last successful pull
// and merges it, holding the writer lock for the whole call.
func (e *Engine) PartialPull(ctx context.Context) error {
	return e.pull(ctx, e.session.Since())
}

func (e *Engine) pull(ctx context.Context, since int64) error {
	resp, err := e.FetchPull(ctx, since)
	if err != nil {
		return err
	}
	return e.MergePull(ctx, resp)
}

// FetchPull performs the pull GET for everything changed since since (0
// for a full pull). Call without holding the writer lock: this is pure
// network I/O. The result is applied with MergePull.
func (e *Engine) FetchPull(ctx context.Context, since int64) (*pullResponse, error) {
	path := fmt.Sprintf("/api/v8/me?with_related_data=true&since=%d", since)

	var resp pullResponse
	if err := e.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	return &resp, nil
}

// MergePull applies a pull response (from FetchPull) to the local store
// and graph, and advances the since cursor. Call under the writer lock.
func (e *Engine) MergePull(ctx context.Context, resp *pullResponse) error {
	premium := false
	for _, w := range resp.Data.Workspaces {
		if _, err := e.store.Workspaces.Upsert(ctx, workspaceFromWire(w)); err != nil {
			return fmt.Errorf("merge workspace[%d]: %w", w.ID, err)
		}
		if w.Premium {
			premium = true
		}
	}
	// re-index every workspace row, including ones not in this page, so
	// HasPremiumWorkspaces reflects the union across pulls.
	workspaces, err := e.store.Workspaces.List(ctx)
	if err != nil {
		return fmt.Errorf("reload workspaces: %w", err)
	}
	for _, w := range workspaces {
		e.graph.PutWorkspace(w)
		premium = premium || w.Premium
	}
	e.session.SetPremiumCache(premium)

	for _, w := range resp.Data.Clients {
		if err := e.mergeClient(ctx, clientFromWire(w)); err != nil {
			return fmt.Errorf("merge client[%s]: %w", w.GUID, err)
		}
	}
	for _, w := range resp.Data.Projects {
		if err := e.mergeProject(ctx, projectFromWire(w)); err != nil {
			return fmt.Errorf("merge project[%s]: %w", w.GUID, err)
		}
	}
	for _, w := range resp.Data.Tasks {
		t := taskFromWire(w)
		if err := e.store.Tasks.Upsert(ctx, t); err != nil {
			return fmt.Errorf("merge task[%d]: %w", w.ID, err)
		}
		e.graph.PutTask(t)
	}
	for _, w := range resp.Data.Tags {
		if err := e.mergeTag(ctx, tagFromWire(w)); err != nil {
			return fmt.Errorf("merge tag[%s]: %w", w.GUID, err)
		}
	}
	for _, w := range resp.Data.TimeEntries {
		if err := e.mergeTimeEntry(ctx, timeEntryFromWire(w)); err != nil {
			return fmt.Errorf("merge time entry[%s]: %w", w.GUID, err)
		}
	}

	if err := e.session.SetSince(ctx, resp.Since); err != nil {
		return fmt.Errorf("advance since cursor: %w", err)
	}
	e.log.Info(ctx, "syncengine: pull complete", "since", resp.Since)
	return nil
}
