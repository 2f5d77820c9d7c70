package link

import (
	"context"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// Noop stands in for a Link when peripheral integration is disabled.
type Noop struct{}

func (Noop) Start(context.Context) error { return nil }
func (Noop) Close() error                { return nil }
func (Noop) Send(wire.Message)           {}
func (Noop) OnTrigger(func())            {}
func (Noop) OnLinked(func())             {}

// Status reports a disabled, idle link.
func (Noop) Status() Status {
	return Status{State: StateIdle}
}

var (
	_ Device = Noop{}
	_ Device = (*Link)(nil)
)
