package engine

import (
	"github.com/jonboulle/clockwork"
)

// armLocked replaces any running ticker with a fresh one.
func (e *Engine) armLocked() {
	e.disarmLocked()

	t := e.clock.NewTicker(TickInterval)
	stop := make(chan struct{})
	e.ticker = t
	e.tickStop = stop
	gen := e.tickGen

	go e.tickLoop(t, stop, gen)
}

// disarmLocked stops the ticker and invalidates any tick already in flight.
func (e *Engine) disarmLocked() {
	e.tickGen++
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.tickStop)
	e.ticker = nil
	e.tickStop = nil
}

func (e *Engine) tickLoop(t clockwork.Ticker, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
			e.mu.Lock()
			if gen == e.tickGen {
				e.tickLocked()
			}
			e.mu.Unlock()
		}
	}
}
