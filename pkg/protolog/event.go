package protolog

import (
	"fmt"
	"strings"
	"time"
)

// Event is one captured protocol occurrence.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the linked session (empty during discovery).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Port is the serial device name.
	Port string `cbor:"3,keyasint,omitempty"`

	Direction Direction `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// Type-specific payload (one of these is set).
	Line        *LineEvent        `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates traffic flow relative to the host.
type Direction uint8

const (
	DirectionIn       Direction = 0
	DirectionOut      Direction = 1
	DirectionInternal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection accepts the String form in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(s) {
	case "IN":
		return DirectionIn, nil
	case "OUT":
		return DirectionOut, nil
	case "INTERNAL":
		return DirectionInternal, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Category classifies an event.
type Category uint8

const (
	// CategoryLine is an event envelope or unrecognized line.
	CategoryLine Category = 0
	// CategoryControl is a handshake, heartbeat or trigger token.
	CategoryControl Category = 1
	// CategoryState is a link or candidate state change.
	CategoryState Category = 2
	// CategoryError is a transport or protocol error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLine:
		return "LINE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory accepts the String form in any case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(s) {
	case "LINE":
		return CategoryLine, nil
	case "CONTROL":
		return CategoryControl, nil
	case "STATE":
		return CategoryState, nil
	case "ERROR":
		return CategoryError, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// LineEvent captures one line on the wire.
type LineEvent struct {
	// Text is the line without its terminator.
	Text string `cbor:"1,keyasint"`

	// Size is the framed size in bytes.
	Size int `cbor:"2,keyasint"`
}

// StateChangeEvent captures a link or candidate lifecycle change.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityLink      StateEntity = 0
	StateEntityCandidate StateEntity = 1
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityCandidate:
		return "CANDIDATE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a transport or protocol error.
type ErrorEventData struct {
	Message string `cbor:"1,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"2,keyasint,omitempty"`
}
