package syncengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loctrack/agent/internal/model"
)

// pushEnvelope is one entry in the outbound batch array: an ordered,
// per-item "mini request" the server replays against its own handlers.
type pushEnvelope struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	GUID        string `json:"guid"`
	Body        any    `json:"body,omitempty"`
}

// pushResult is one entry in the inbound parallel array, one per
// envelope, in the same order.
type pushResult struct {
	Status int             `json:"status"`
	GUID   string          `json:"guid"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type pushResultBody struct {
	Data wireTimeEntry `json:"data"`
}

type pushErrorBody struct {
	Message string `json:"message"`
}

const batchPushPath = "/api/v8/time_entries/batch_updates"

// PushBatch is the outcome of collecting every pushable time entry under
// the writer lock: the envelope array ready to send, and the entries it
// corresponds to (same order). Nil means there was nothing to push.
type PushBatch struct {
	envelopes []pushEnvelope
	entries   []*model.TimeEntry
}

// PreparePush collects every pushable time entry and purges any
// tombstone that was never pushed to the server (RemoteID == 0, so
// there is nothing remote to delete) without a network round trip. Call
// this under the writer lock; the returned batch is sent over the wire
// with SendPush with the lock released, per spec.md §5's rule that
// workers must not hold the writer lock across I/O.
func (e *Engine) PreparePush(ctx context.Context) (*PushBatch, error) {
	pushable := e.graph.CollectPushable()

	var envelopes []pushEnvelope
	var entries []*model.TimeEntry
	for _, entry := range pushable {
		if entry.RemoteID == 0 && entry.IsTombstoned() {
			if err := e.purgeLocalOnly(ctx, entry); err != nil {
				return nil, err
			}
			continue
		}
		envelopes = append(envelopes, buildEnvelope(entry))
		entries = append(entries, entry)
	}
	if len(envelopes) == 0 {
		return nil, nil
	}
	return &PushBatch{envelopes: envelopes, entries: entries}, nil
}

// SendPush performs the batch HTTP POST for batch. Call without holding
// the writer lock: this is pure network I/O, and a down server must
// never block a caller holding it. A failure here (network error, 5xx)
// fails the whole batch; per-item 4xx/404 responses are carried in the
// returned results and handled individually by ApplyPushResults.
func (e *Engine) SendPush(ctx context.Context, batch *PushBatch) ([]pushResult, error) {
	var results []pushResult
	if err := e.client.Post(ctx, batchPushPath, batch.envelopes, &results); err != nil {
		return nil, fmt.Errorf("push batch: %w", err)
	}
	if len(results) != len(batch.entries) {
		return nil, fmt.Errorf("push batch: expected %d results, got %d", len(batch.entries), len(results))
	}
	return results, nil
}

// ApplyPushResults applies results (from SendPush) to batch's entries,
// leaving any entry whose item failed dirty for the next push. Call
// under the writer lock.
func (e *Engine) ApplyPushResults(ctx context.Context, batch *PushBatch, results []pushResult) error {
	for i, result := range results {
		if err := e.applyPushResult(ctx, batch.entries[i], result); err != nil {
			return fmt.Errorf("apply push result[%s]: %w", batch.entries[i].GUID, err)
		}
	}
	e.log.Info(ctx, "syncengine: push complete", "count", len(batch.entries))
	return nil
}

// Push collects, sends and applies a batch push in one call, holding the
// writer lock for its entire duration. Used by Context.Sync (a
// foreground, user-initiated call, not a background worker) and by
// tests; the dispatcher's push worker uses PreparePush/SendPush/
// ApplyPushResults directly so it can release the lock around the
// network round trip.
func (e *Engine) Push(ctx context.Context) error {
	batch, err := e.PreparePush(ctx)
	if err != nil {
		return err
	}
	if batch == nil {
		return nil
	}
	results, err := e.SendPush(ctx, batch)
	if err != nil {
		return err
	}
	return e.ApplyPushResults(ctx, batch, results)
}

func buildEnvelope(entry *model.TimeEntry) pushEnvelope {
	wire := timeEntryToWire(entry)
	switch {
	case entry.IsTombstoned():
		return pushEnvelope{
			Method:      "DELETE",
			RelativeURL: fmt.Sprintf("/api/v8/time_entries/%d", entry.RemoteID),
			GUID:        entry.GUID,
		}
	case entry.RemoteID == 0:
		return pushEnvelope{
			Method:      "POST",
			RelativeURL: "/api/v8/time_entries",
			GUID:        entry.GUID,
			Body:        wire,
		}
	default:
		return pushEnvelope{
			Method:      "PUT",
			RelativeURL: fmt.Sprintf("/api/v8/time_entries/%d", entry.RemoteID),
			GUID:        entry.GUID,
			Body:        wire,
		}
	}
}

func (e *Engine) applyPushResult(ctx context.Context, entry *model.TimeEntry, result pushResult) error {
	switch {
	case result.Status >= 200 && result.Status < 300:
		if entry.IsTombstoned() {
			return e.purgeLocalOnly(ctx, entry)
		}
		if len(result.Body) > 0 {
			var body pushResultBody
			if err := json.Unmarshal(result.Body, &body); err == nil && body.Data.ID != 0 {
				// apply every server-normalized field (times, duration,
				// etc.), not just the assigned remote id.
				normalized := timeEntryFromWire(body.Data)
				normalized.LocalID = entry.LocalID
				if normalized.GUID == "" {
					normalized.GUID = entry.GUID
				}
				entry = normalized
			}
		}
		entry.UIModifiedAt = 0
		entry.ValidationError = ""
		return e.persistTimeEntry(ctx, entry)

	case result.Status == 404:
		// server has no record of this entry. For a DELETE this just
		// confirms the tombstone; for POST/PUT it means someone else
		// already deleted it, so the local edit is dropped rather than
		// retried.
		if !entry.IsTombstoned() {
			e.log.Warn(ctx, "syncengine: push target no longer exists, dropping local changes", "guid", entry.GUID)
		}
		return e.purgeLocalOnly(ctx, entry)

	case result.Status >= 400 && result.Status < 500:
		var body pushErrorBody
		_ = json.Unmarshal(result.Body, &body)
		if body.Message == "" {
			body.Message = fmt.Sprintf("push rejected with status %d", result.Status)
		}
		entry.ValidationError = body.Message
		return e.persistTimeEntry(ctx, entry)

	default:
		// 5xx on an individual item: leave it dirty, retried on the next push.
		e.log.Warn(ctx, "syncengine: push item failed, will retry", "guid", entry.GUID, "status", result.Status)
		return nil
	}
}

func (e *Engine) persistTimeEntry(ctx context.Context, entry *model.TimeEntry) error {
	if err := e.store.TimeEntries.Update(ctx, entry); err != nil {
		return err
	}
	e.graph.PutTimeEntry(entry)
	return nil
}

func (e *Engine) purgeLocalOnly(ctx context.Context, entry *model.TimeEntry) error {
	if err := e.store.TimeEntries.DeleteByLocalID(ctx, entry.LocalID); err != nil {
		return err
	}
	e.graph.RemoveTimeEntry(entry)
	return nil
}
