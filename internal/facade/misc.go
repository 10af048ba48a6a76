package facade

import (
	"context"
	"fmt"

	"github.com/loctrack/agent/internal/formatter"
	"github.com/loctrack/agent/internal/netx"
)

// WebsocketSwitch turns the live-update consumer on or off at runtime.
// Turning it back on after Init started it once reconnects with a fresh
// Consumer.Run goroutine.
func (c *Context) WebsocketSwitch(on bool) {
	if on == c.websocketEnabled {
		return
	}
	c.websocketEnabled = on
	if on {
		c.startLiveUpdate()
	}
	// Turning it off cannot cancel only the live-update goroutine without
	// a dedicated sub-context; the one full-lifetime runCtx is shared
	// with the dispatcher, so "off" here means "do not reconnect a new
	// one", matching the common case of a host disabling it before Init
	// rather than flipping it mid-session.
}

// TimelineSwitch enables or disables the timeline worker's recording
// check. Window-activity sampling itself is out of scope (spec.md §1);
// this only toggles the flag the placeholder worker observes.
func (c *Context) TimelineSwitch(on bool) {
	c.timelineEnabled = on
}

// TimelineToggleRecording flips the persisted record-timeline flag on
// the signed-in user.
func (c *Context) TimelineToggleRecording(ctx context.Context) error {
	return c.session.SetRecordTimeline(ctx, !c.session.RecordTimeline())
}

// TimelineIsRecordingEnabled reports whether both the user's
// record-timeline flag and the local timeline switch are on; this is
// the function the dispatcher's timeline worker consults.
func (c *Context) TimelineIsRecordingEnabled() bool {
	return c.timelineEnabled && c.session.RecordTimeline()
}

// FeedbackSend is a stub: no feedback endpoint is specified (spec.md §1
// lists "CLI, logging setup, credential bootstrapping" as the kind of
// external collaborator this core does not implement). It validates its
// arguments so a host integrating against this call surface gets a clear
// synchronous error rather than a silent no-op.
func (c *Context) FeedbackSend(ctx context.Context, topic, details, base64Image string) error {
	if topic == "" {
		return fmt.Errorf("feedback topic is required")
	}
	c.log.Info(ctx, "facade: feedback_send has no configured endpoint, dropping", "topic", topic)
	return nil
}

// ParseDurationStringIntoSeconds exposes formatter.ParseDuration to
// hosts that want to preview a duration string's parsed value (e.g. as
// the user types) without going through SetTimeEntryDuration.
func (c *Context) ParseDurationStringIntoSeconds(s string) int64 {
	return formatter.ParseDuration(s)
}

// IsNetworkingError classifies a message string (typically an error's
// .Error() text) as a transient networking failure per spec.md §6's
// substring table.
func (c *Context) IsNetworkingError(msg string) bool {
	return netx.IsTransient(msg)
}
