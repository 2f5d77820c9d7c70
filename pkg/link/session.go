package link

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// session is the active, handshaken port.
type session struct {
	id   string
	cand *candidate
	name string
	port Port

	out  chan []byte
	stop chan struct{}

	heartbeat clockwork.Ticker
	watchdog  clockwork.Timer
	// watchdogGen invalidates watchdog callbacks that were already in
	// flight when the watchdog was re-armed.
	watchdogGen uint64

	linkedAt    time.Time
	lastTraffic time.Time
}

// takeLocked promotes c to the active port and discards every other
// candidate.
func (l *Link) takeLocked(c *candidate) {
	c.done = true
	c.timer.Stop()
	delete(l.candidates, c)
	l.recordCandidate(c, "OPEN", "TAKEN", "")
	for o := range l.candidates {
		l.dropCandidateLocked(o, "lost handshake race")
	}
	l.cancelRetryLocked()

	now := l.clock.Now()
	s := &session{
		id:          uuid.NewString(),
		cand:        c,
		name:        c.name,
		port:        c.port,
		out:         make(chan []byte, outboundQueue),
		stop:        make(chan struct{}),
		linkedAt:    now,
		lastTraffic: now,
	}
	l.active = s
	l.backoff.Reset()
	l.lastError = ""

	l.logger.Info().Str("port", s.name).Str("session_id", s.id).Msg("peripheral linked")
	l.setStateLocked(StateLinked, "handshake received")

	s.heartbeat = l.clock.NewTicker(l.cfg.HeartbeatInterval)
	go l.writeLoop(s)
	go l.heartbeatLoop(s, s.heartbeat)

	l.enqueueLocked(s, wire.EncodeToken(wire.TokenHeartbeat))
	l.armWatchdogLocked(s)

	for _, fn := range l.onLinked {
		l.deferred = append(l.deferred, fn)
	}
}

func (l *Link) sessionLineLocked(s *session, line string) {
	s.lastTraffic = l.clock.Now()
	l.armWatchdogLocked(s)
	l.recordLine(protolog.DirectionIn, s.id, s.name, []byte(line))

	tok, err := wire.ParseLine(line, l.cfg.TriggerToken)
	switch {
	case errors.Is(err, wire.ErrEmptyLine):
	case err != nil:
		l.logger.Warn().Str("port", s.name).Str("line", line).Msg("unexpected data from peripheral")
	case tok == wire.TokenHandshake:
		l.logger.Info().Str("port", s.name).Msg("handshake received on active port")
	case tok == wire.TokenHeartbeat:
	default:
		l.logger.Info().Str("port", s.name).Str("token", string(tok)).Msg("peripheral trigger")
		for _, fn := range l.onTrigger {
			l.deferred = append(l.deferred, fn)
		}
	}
}

func (l *Link) enqueueLocked(s *session, b []byte) {
	select {
	case s.out <- b:
	default:
		l.logger.Warn().Str("port", s.name).Msg("outbound queue full, dropping line")
	}
}

// writeLoop owns all writes to the active port so a slow device never
// blocks a caller.
func (l *Link) writeLoop(s *session) {
	for {
		select {
		case <-s.stop:
			return
		case b := <-s.out:
			if _, err := s.port.Write(b); err != nil {
				l.writeFailed(s, err)
				return
			}
			l.recordLine(protolog.DirectionOut, s.id, s.name, b)
		}
	}
}

func (l *Link) writeFailed(s *session, err error) {
	l.mu.Lock()
	defer l.unlock()

	if l.active != s {
		return
	}
	l.recordError(s.id, s.name, "write", err)
	l.failLocked(s, "write failed: "+err.Error())
}

func (l *Link) heartbeatLoop(s *session, t clockwork.Ticker) {
	for {
		select {
		case <-s.stop:
			return
		case <-t.Chan():
			l.mu.Lock()
			if l.active == s {
				l.enqueueLocked(s, wire.EncodeToken(wire.TokenHeartbeat))
			}
			l.unlock()
		}
	}
}

func (l *Link) armWatchdogLocked(s *session) {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdogGen++
	gen := s.watchdogGen
	s.watchdog = l.clock.AfterFunc(l.cfg.LivenessTimeout, func() { l.watchdogExpired(s, gen) })
}

func (l *Link) watchdogExpired(s *session, gen uint64) {
	l.mu.Lock()
	defer l.unlock()

	if l.active != s || s.watchdogGen != gen {
		return
	}
	l.logger.Warn().Str("port", s.name).Msg("serial heartbeat expired")
	l.failLocked(s, "liveness timeout")
}

// failLocked tears down the active session and schedules the single
// reconnect attempt. Failures reported for a session that is no longer
// active are ignored.
func (l *Link) failLocked(s *session, reason string) {
	if l.active != s {
		return
	}
	l.active = nil
	l.endSessionLocked(s)

	l.lastError = reason
	l.reconnects++
	delay := l.backoff.Next()

	l.logger.Error().
		Str("port", s.name).
		Str("session_id", s.id).
		Str("reason", reason).
		Dur("retry_in", delay).
		Msg("peripheral link lost")

	l.setStateLocked(StateReconnectPending, reason)
	l.scheduleRetryLocked(delay)
}

func (l *Link) endSessionLocked(s *session) {
	close(s.stop)
	s.heartbeat.Stop()
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdogGen++
	go l.closePort(s.name, s.port)
}
