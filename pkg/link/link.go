package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// Protocol timing defaults.
const (
	DefaultHandshakeTimeout  = 2500 * time.Millisecond
	DefaultLivenessTimeout   = 2500 * time.Millisecond
	DefaultDiscoveryInterval = 5 * time.Second

	// HeartbeatMargin is how much earlier than the liveness timeout the
	// host sends its own heartbeat.
	HeartbeatMargin = 500 * time.Millisecond

	outboundQueue = 64
)

// Link errors.
var (
	ErrClosed   = errors.New("link closed")
	ErrStarted  = errors.New("link already started")
	ErrNoTarget = errors.New("neither a device path nor a signature is configured")
)

// Device is the peripheral surface used by the process. *Link and Noop
// implement it.
type Device interface {
	Start(ctx context.Context) error
	Close() error
	Send(msg wire.Message)
	Status() Status
	OnTrigger(fn func())
	OnLinked(fn func())
}

// Config configures a Link.
type Config struct {
	// DevicePath pins the link to one port. When empty, enumerated ports
	// matching Signature are probed.
	DevicePath string
	Signature  Signature

	HandshakeTimeout  time.Duration
	LivenessTimeout   time.Duration
	HeartbeatInterval time.Duration

	// DiscoveryInterval is the pause between discovery rounds that found
	// no peripheral.
	DiscoveryInterval time.Duration

	Reconnect BackoffConfig

	// TriggerToken is the inbound start/finish token. Empty disables it.
	TriggerToken wire.Token

	Clock          clockwork.Clock
	Logger         *zerolog.Logger
	ProtocolLogger protolog.Logger
}

// Link is the peripheral state machine.
type Link struct {
	mu sync.Mutex

	cfg     Config
	clock   clockwork.Clock
	logger  zerolog.Logger
	plog    protolog.Logger
	enum    Enumerator
	opener  Opener
	backoff *Backoff

	state      State
	started    bool
	done       chan struct{}
	round      uint64
	candidates map[*candidate]struct{}
	active     *session
	reconnects int
	lastError  string

	// Reconnect and rediscovery share one timer so at most one attempt is
	// ever pending.
	retryTimer clockwork.Timer
	retryGen   uint64

	// Callbacks queued while locked, run by unlock.
	deferred []func()

	onTrigger     []func()
	onLinked      []func()
	onStateChange []func(from, to State)
}

// New creates a Link. enum may be nil when cfg.DevicePath is set.
func New(cfg Config, enum Enumerator, opener Opener) (*Link, error) {
	if cfg.DevicePath == "" && cfg.Signature.IsZero() {
		return nil, ErrNoTarget
	}
	if cfg.DevicePath == "" && enum == nil {
		return nil, errors.New("signature discovery needs an enumerator")
	}
	if opener == nil {
		return nil, errors.New("opener is required")
	}

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = DefaultLivenessTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LivenessTimeout - HeartbeatMargin
		if cfg.HeartbeatInterval <= 0 {
			cfg.HeartbeatInterval = cfg.LivenessTimeout / 2
		}
	}
	if cfg.HeartbeatInterval >= cfg.LivenessTimeout {
		return nil, fmt.Errorf("heartbeat interval %v must be shorter than liveness timeout %v",
			cfg.HeartbeatInterval, cfg.LivenessTimeout)
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	l := &Link{
		cfg:        cfg,
		clock:      cfg.Clock,
		plog:       cfg.ProtocolLogger,
		enum:       enum,
		opener:     opener,
		backoff:    NewBackoff(cfg.Reconnect),
		state:      StateIdle,
		done:       make(chan struct{}),
		candidates: make(map[*candidate]struct{}),
	}
	if cfg.Logger != nil {
		l.logger = *cfg.Logger
	} else {
		l.logger = log.With().Str("component", "link").Logger()
	}
	if l.plog == nil {
		l.plog = protolog.NoopLogger{}
	}
	return l, nil
}

// Start begins discovery and returns immediately. The link closes itself
// when ctx is cancelled.
func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.unlock()

	if l.state == StateClosed {
		return ErrClosed
	}
	if l.started {
		return ErrStarted
	}
	l.started = true

	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-l.done:
		}
	}()

	l.beginDiscoveryLocked("start")
	return nil
}

// Close tears down every port and cancels pending timers. It is safe to
// call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.unlock()

	if l.state == StateClosed {
		return nil
	}

	l.cancelRetryLocked()
	for c := range l.candidates {
		l.dropCandidateLocked(c, "link closed")
	}
	if s := l.active; s != nil {
		l.active = nil
		l.endSessionLocked(s)
	}
	l.round++
	l.setStateLocked(StateClosed, "closed")
	close(l.done)
	return nil
}

// Send queues an event for the active port. Without a link it is dropped.
func (l *Link) Send(msg wire.Message) {
	b, err := wire.Encode(msg)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to encode peripheral event")
		return
	}

	l.mu.Lock()
	defer l.unlock()

	if s := l.active; s != nil {
		l.enqueueLocked(s, b)
	}
}

// OnTrigger registers a callback for the peripheral's start/finish token.
func (l *Link) OnTrigger(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onTrigger = append(l.onTrigger, fn)
}

// OnLinked registers a callback for every newly established link.
func (l *Link) OnLinked(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLinked = append(l.onLinked, fn)
}

// OnStateChange registers a callback for state transitions.
func (l *Link) OnStateChange(fn func(from, to State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStateChange = append(l.onStateChange, fn)
}

// State returns the current state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Status returns a snapshot of the link.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Status{
		Enabled:    true,
		State:      l.state,
		Candidates: len(l.candidates),
		Reconnects: l.reconnects,
		LastError:  l.lastError,
	}
	if s := l.active; s != nil {
		st.Port = s.name
		st.SessionID = s.id
		st.LinkedAt = s.linkedAt
		st.LastTraffic = s.lastTraffic
	}
	return st
}

// unlock releases the mutex and then runs the callbacks queued under it.
func (l *Link) unlock() {
	fns := l.deferred
	l.deferred = nil
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *Link) setStateLocked(to State, reason string) {
	from := l.state
	if from == to {
		return
	}
	l.state = to

	l.logger.Debug().Str("from", from.String()).Str("to", to.String()).Str("reason", reason).Msg("link state")
	l.record(protolog.Event{
		Direction: protolog.DirectionInternal,
		Category:  protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{
			Entity:   protolog.StateEntityLink,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})

	for _, fn := range l.onStateChange {
		l.deferred = append(l.deferred, func() { fn(from, to) })
	}
}

// scheduleRetryLocked replaces any pending retry with one firing after d.
func (l *Link) scheduleRetryLocked(d time.Duration) {
	l.cancelRetryLocked()
	gen := l.retryGen
	l.retryTimer = l.clock.AfterFunc(d, func() { l.retryFired(gen) })
}

func (l *Link) cancelRetryLocked() {
	l.retryGen++
	if l.retryTimer != nil {
		l.retryTimer.Stop()
		l.retryTimer = nil
	}
}

func (l *Link) retryFired(gen uint64) {
	l.mu.Lock()
	defer l.unlock()

	if gen != l.retryGen || l.state == StateClosed || l.active != nil {
		return
	}
	l.retryTimer = nil
	l.beginDiscoveryLocked("retry")
}

func (l *Link) record(ev protolog.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.clock.Now()
	}
	l.plog.Log(ev)
}

// recordLine captures one framed or unframed line.
func (l *Link) recordLine(dir protolog.Direction, sessionID, port string, line []byte) {
	text := string(line)
	size := len(line)
	if n := len(text); n > 0 && text[n-1] == '\n' {
		text = text[:n-1]
	} else {
		size++
	}

	cat := protolog.CategoryLine
	if _, err := wire.ParseLine(text, l.cfg.TriggerToken); err == nil {
		cat = protolog.CategoryControl
	}

	l.record(protolog.Event{
		SessionID: sessionID,
		Port:      port,
		Direction: dir,
		Category:  cat,
		Line:      &protolog.LineEvent{Text: text, Size: size},
	})
}

func (l *Link) recordError(sessionID, port, op string, err error) {
	l.record(protolog.Event{
		SessionID: sessionID,
		Port:      port,
		Direction: protolog.DirectionInternal,
		Category:  protolog.CategoryError,
		Error:     &protolog.ErrorEventData{Message: err.Error(), Context: op},
	})
}

func (l *Link) closePort(name string, p Port) {
	if err := p.Close(); err != nil {
		l.logger.Debug().Str("port", name).Err(err).Msg("error closing port")
	}
}
