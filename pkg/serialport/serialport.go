// Package serialport backs the link's Enumerator and Opener with real
// serial devices.
package serialport

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
)

// DefaultBaudRate is the line speed of the reference peripheral.
const DefaultBaudRate = 9600

// Enumerator lists the host's serial ports with USB details.
type Enumerator struct{}

// Ports implements link.Enumerator.
func (Enumerator) Ports() ([]link.PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	return convert(details), nil
}

func convert(details []*enumerator.PortDetails) []link.PortInfo {
	out := make([]link.PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		out = append(out, link.PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return out
}

// Opener opens ports at a fixed baud rate, 8N1.
type Opener struct {
	BaudRate int
}

// Open implements link.Opener.
func (o Opener) Open(name string) (link.Port, error) {
	baud := o.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return p, nil
}

var (
	_ link.Enumerator = Enumerator{}
	_ link.Opener     = Opener{}
)
