package protolog

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter writes events to a zerolog logger at debug level.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter returns an adapter around logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event.
func (a *ZerologAdapter) Log(event Event) {
	e := a.logger.Debug().
		Str("direction", event.Direction.String()).
		Str("category", event.Category.String())
	if event.SessionID != "" {
		e = e.Str("session_id", event.SessionID)
	}
	if event.Port != "" {
		e = e.Str("port", event.Port)
	}

	switch {
	case event.Line != nil:
		e = e.Str("line", event.Line.Text).Int("size", event.Line.Size)
	case event.StateChange != nil:
		e = e.Str("entity", event.StateChange.Entity.String()).
			Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			e = e.Str("reason", event.StateChange.Reason)
		}
	case event.Error != nil:
		e = e.Str("error_msg", event.Error.Message).Str("error_context", event.Error.Context)
	}

	e.Msg("protocol")
}

var _ Logger = (*ZerologAdapter)(nil)
