// Package timevalue holds the elapsed-time value shared by the root clock and
// every runner result.
package timevalue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned by Parse for strings that are not [[hh:]mm:]ss.
var ErrInvalidTime = errors.New("invalid time string")

// Value is a whole-second duration together with its display form and the
// wall-clock instant at which Raw last changed.
type Value struct {
	// Raw is the elapsed duration in seconds.
	Raw int `json:"raw"`

	// Formatted is Format(Raw). It is only ever written by Set.
	Formatted string `json:"formatted"`

	// Timestamp is when Raw last changed.
	Timestamp time.Time `json:"timestamp"`
}

// New returns a Value of raw seconds stamped at now.
func New(raw int, now time.Time) Value {
	var v Value
	v.Set(raw, now)
	return v
}

// Set replaces the raw seconds, recomputes the display form and stamps the
// change. Negative values are clamped to zero.
func (v *Value) Set(raw int, now time.Time) {
	if raw < 0 {
		raw = 0
	}
	v.Raw = raw
	v.Formatted = Format(raw)
	v.Timestamp = now
}

// Increment adds one second.
func (v *Value) Increment(now time.Time) {
	v.Set(v.Raw+1, now)
}

// Normalize recomputes Formatted from Raw without touching Timestamp.
// Used after decoding a value from an untrusted source.
func (v *Value) Normalize() {
	if v.Raw < 0 {
		v.Raw = 0
	}
	v.Formatted = Format(v.Raw)
}

// Format renders seconds as m:ss, or h:mm:ss once an hour has elapsed.
func Format(raw int) string {
	if raw < 0 {
		raw = 0
	}
	h := raw / 3600
	m := (raw % 3600) / 60
	s := raw % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Parse reads a [[hh:]mm:]ss string into seconds. Each segment is one or two
// digits and may or may not be zero padded. Segment values are not range
// checked, so "1:75" is 135 seconds.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidTime
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has too many segments", ErrInvalidTime, s)
	}

	total := 0
	for _, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p[0] == '+' || p[0] == '-' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		total = total*60 + n
	}
	return total, nil
}
