package link

import (
	"io"
	"strings"
)

// Port is an open serial device.
type Port interface {
	io.ReadWriteCloser
}

// PortInfo describes an enumerated serial device.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Enumerator lists serial devices.
type Enumerator interface {
	Ports() ([]PortInfo, error)
}

// Opener opens a serial device by name.
type Opener interface {
	Open(name string) (Port, error)
}

// Signature identifies peripheral ports. Empty fields match anything, but
// an all-empty signature matches nothing.
type Signature struct {
	VID     string `yaml:"vid" json:"vid,omitempty"`
	PID     string `yaml:"pid" json:"pid,omitempty"`
	Product string `yaml:"product" json:"product,omitempty"`
}

// IsZero reports whether no field is set.
func (s Signature) IsZero() bool {
	return s.VID == "" && s.PID == "" && s.Product == ""
}

// Matches reports whether p looks like the peripheral. USB ids compare
// case-insensitively; Product matches as a case-insensitive substring.
func (s Signature) Matches(p PortInfo) bool {
	if s.IsZero() {
		return false
	}
	if s.VID != "" && !strings.EqualFold(s.VID, p.VID) {
		return false
	}
	if s.PID != "" && !strings.EqualFold(s.PID, p.PID) {
		return false
	}
	if s.Product != "" && !strings.Contains(strings.ToLower(p.Product), strings.ToLower(s.Product)) {
		return false
	}
	return true
}
