// Package trigger polls a button-style input device, such as a USB foot
// pedal that enumerates as a gamepad, and reports presses.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/0xcafed00d/joystick"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Polling defaults.
const (
	DefaultPollInterval   = 16 * time.Millisecond
	DefaultReopenInterval = 5 * time.Second
)

// ErrStarted is returned by a second Start.
var ErrStarted = errors.New("pedal already started")

// Pad is an open input device. joystick.Joystick satisfies it.
type Pad interface {
	Read() (joystick.State, error)
	Close()
}

// OpenFunc opens the device with the given index.
type OpenFunc func(index int) (Pad, error)

// OpenJoystick opens a system joystick device.
func OpenJoystick(index int) (Pad, error) {
	return joystick.Open(index)
}

// Config configures a Pedal.
type Config struct {
	DeviceIndex int
	ButtonID    int

	PollInterval   time.Duration
	ReopenInterval time.Duration

	Clock  clockwork.Clock
	Logger *zerolog.Logger
}

// Pedal fires its callbacks on every press of one button.
type Pedal struct {
	cfg    Config
	open   OpenFunc
	clock  clockwork.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	onPress []func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPedal returns a Pedal. open defaults to OpenJoystick.
func NewPedal(cfg Config, open OpenFunc) *Pedal {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReopenInterval <= 0 {
		cfg.ReopenInterval = DefaultReopenInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if open == nil {
		open = OpenJoystick
	}

	p := &Pedal{cfg: cfg, open: open, clock: cfg.Clock}
	if cfg.Logger != nil {
		p.logger = *cfg.Logger
	} else {
		p.logger = log.With().Str("component", "pedal").Logger()
	}
	return p
}

// OnPress registers a callback. Callbacks run on the polling goroutine.
func (p *Pedal) OnPress(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPress = append(p.onPress, fn)
}

// Start begins polling in the background.
func (p *Pedal) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return ErrStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

// Close stops polling and waits for the poller to release the device.
func (p *Pedal) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Pedal) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := p.clock.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var (
		pad       Pad
		nextOpen  time.Time
		pressed   bool
		primed    bool
		lastErred bool
	)
	defer func() {
		if pad != nil {
			pad.Close()
		}
	}()

	mask := uint32(1) << uint(p.cfg.ButtonID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if pad == nil {
			now := p.clock.Now()
			if now.Before(nextOpen) {
				continue
			}
			var err error
			pad, err = p.open(p.cfg.DeviceIndex)
			if err != nil {
				pad = nil
				nextOpen = now.Add(p.cfg.ReopenInterval)
				if !lastErred {
					p.logger.Warn().Int("device_index", p.cfg.DeviceIndex).Err(err).Msg("foot pedal unavailable")
					lastErred = true
				}
				continue
			}
			lastErred = false
			primed = false
			p.logger.Info().Int("device_index", p.cfg.DeviceIndex).Msg("foot pedal opened")
		}

		state, err := pad.Read()
		if err != nil {
			p.logger.Error().Err(err).Msg("foot pedal read failed")
			pad.Close()
			pad = nil
			nextOpen = p.clock.Now().Add(p.cfg.ReopenInterval)
			continue
		}

		down := state.Buttons&mask != 0
		// The first read after opening only establishes the baseline, so a
		// pedal held down while reconnecting does not fire.
		if primed && down && !pressed {
			p.logger.Debug().Int("button_id", p.cfg.ButtonID).Msg("foot pedal pressed")
			p.fire()
		}
		pressed = down
		primed = true
	}
}

func (p *Pedal) fire() {
	p.mu.Lock()
	fns := append([]func(){}, p.onPress...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
