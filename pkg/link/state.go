package link

import (
	"time"
)

// State is the link lifecycle state.
type State uint8

const (
	// StateIdle means no link and no discovery in progress.
	StateIdle State = iota

	// StateDiscovering means ports are being enumerated.
	StateDiscovering

	// StateHandshaking means candidates have been sent a handshake.
	StateHandshaking

	// StateLinked means an active port answered the handshake.
	StateLinked

	// StateReconnectPending means the link failed and one retry is scheduled.
	StateReconnectPending

	// StateClosed means the link has been shut down.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscovering:
		return "DISCOVERING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateLinked:
		return "LINKED"
	case StateReconnectPending:
		return "RECONNECT_PENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the link.
type Status struct {
	Enabled     bool      `json:"enabled"`
	State       State     `json:"state"`
	Port        string    `json:"port,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	LinkedAt    time.Time `json:"linked_at,omitzero"`
	LastTraffic time.Time `json:"last_traffic,omitzero"`
	Candidates  int       `json:"candidates"`
	Reconnects  int       `json:"reconnects"`
	LastError   string    `json:"last_error,omitempty"`
}
