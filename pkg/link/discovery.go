package link

import (
	"errors"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// candidate is a port being probed with a handshake.
type candidate struct {
	name  string
	port  Port
	timer clockwork.Timer

	// done is set once the candidate won, timed out or was discarded.
	done bool
}

func (l *Link) beginDiscoveryLocked(reason string) {
	if l.state == StateClosed || l.active != nil {
		return
	}
	l.cancelRetryLocked()
	l.round++
	round := l.round
	l.setStateLocked(StateDiscovering, reason)
	go l.discover(round)
}

// targets lists the ports to probe. Enumeration may block, so it runs
// without the lock.
func (l *Link) targets() ([]string, error) {
	if l.cfg.DevicePath != "" {
		return []string{l.cfg.DevicePath}, nil
	}

	ports, err := l.enum.Ports()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	var names []string
	for _, p := range ports {
		if l.cfg.Signature.Matches(p) {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func (l *Link) discover(round uint64) {
	names, err := l.targets()

	l.mu.Lock()
	defer l.unlock()

	if round != l.round || l.state != StateDiscovering {
		return
	}
	if err != nil {
		l.lastError = err.Error()
		l.logger.Error().Err(err).Msg("serial discovery failed")
		l.recordError("", "", "enumerate", err)
		l.idleLocked("enumeration failed")
		return
	}
	if len(names) == 0 {
		l.logger.Debug().Msg("no matching serial ports")
		l.idleLocked("no matching ports")
		return
	}

	l.setStateLocked(StateHandshaking, fmt.Sprintf("%d candidate(s)", len(names)))
	for _, name := range names {
		c := &candidate{name: name}
		l.candidates[c] = struct{}{}
		c.timer = l.clock.AfterFunc(l.cfg.HandshakeTimeout, func() { l.handshakeExpired(c) })
		l.recordCandidate(c, "", "OPENING", "")
		go l.probe(c)
	}
}

// idleLocked parks the link until the next discovery round.
func (l *Link) idleLocked(reason string) {
	l.setStateLocked(StateIdle, reason)
	l.scheduleRetryLocked(l.cfg.DiscoveryInterval)
}

// probe opens a candidate, sends the handshake and then becomes the port's
// reader for as long as it stays open.
func (l *Link) probe(c *candidate) {
	port, err := l.opener.Open(c.name)

	l.mu.Lock()
	if c.done {
		l.unlock()
		if err == nil {
			l.closePort(c.name, port)
		}
		return
	}
	if err != nil {
		l.lastError = err.Error()
		l.logger.Error().Str("port", c.name).Err(err).Msg("error opening prospective port")
		l.recordError("", c.name, "open", err)
		l.dropCandidateLocked(c, "open failed")
		l.candidateGoneLocked()
		l.unlock()
		return
	}
	c.port = port
	l.recordCandidate(c, "OPENING", "OPEN", "")
	l.unlock()

	hs := wire.EncodeToken(wire.TokenHandshake)
	if _, err := port.Write(hs); err != nil {
		// Some devices enumerate but refuse writes; the handshake window
		// disposes of them.
		l.logger.Debug().Str("port", c.name).Err(err).Msg("handshake write failed")
	} else {
		l.recordLine(protolog.DirectionOut, "", c.name, hs)
	}

	l.readLoop(c, port)
}

func (l *Link) readLoop(c *candidate, port Port) {
	r := wire.NewLineReader(port)
	for {
		line, err := r.ReadLine()
		if errors.Is(err, wire.ErrLineTooLong) {
			l.logger.Warn().Str("port", c.name).Int("max", wire.MaxLineLength).Msg("discarding oversized line")
			continue
		}
		if err != nil {
			l.portLost(c, err)
			return
		}
		l.handleLine(c, line)
	}
}

func (l *Link) handleLine(c *candidate, line string) {
	l.mu.Lock()
	defer l.unlock()

	if s := l.active; s != nil && s.cand == c {
		l.sessionLineLocked(s, line)
		return
	}
	if c.done {
		return
	}

	l.recordLine(protolog.DirectionIn, "", c.name, []byte(line))
	tok, err := wire.ParseLine(line, l.cfg.TriggerToken)
	if err != nil || tok != wire.TokenHandshake {
		l.logger.Debug().Str("port", c.name).Str("line", line).Msg("ignoring pre-handshake line")
		return
	}

	l.logger.Info().Str("port", c.name).Msg("handshake received")
	l.takeLocked(c)
}

func (l *Link) handshakeExpired(c *candidate) {
	l.mu.Lock()
	defer l.unlock()

	if c.done {
		return
	}
	l.logger.Info().Str("port", c.name).Msg("prospective port did not answer handshake")
	l.dropCandidateLocked(c, "handshake timeout")
	l.candidateGoneLocked()
}

func (l *Link) portLost(c *candidate, err error) {
	l.mu.Lock()
	defer l.unlock()

	reason := "port closed"
	if !errors.Is(err, io.EOF) {
		reason = err.Error()
	}

	if s := l.active; s != nil && s.cand == c {
		l.recordError(s.id, s.name, "read", err)
		l.failLocked(s, reason)
		return
	}
	if !c.done {
		l.logger.Warn().Str("port", c.name).Str("reason", reason).Msg("prospective port lost")
		l.dropCandidateLocked(c, reason)
		l.candidateGoneLocked()
	}
}

// dropCandidateLocked closes and forgets a candidate. Its handshake timer
// is stopped so it cannot fire later.
func (l *Link) dropCandidateLocked(c *candidate, reason string) {
	if c.done {
		return
	}
	c.done = true
	if c.timer != nil {
		c.timer.Stop()
	}
	delete(l.candidates, c)
	l.recordCandidate(c, "", "CLOSED", reason)
	if c.port != nil {
		go l.closePort(c.name, c.port)
	}
}

// candidateGoneLocked ends a round in which nobody answered.
func (l *Link) candidateGoneLocked() {
	if l.active != nil || len(l.candidates) > 0 || l.state != StateHandshaking {
		return
	}
	l.logger.Info().Dur("retry_in", l.cfg.DiscoveryInterval).Msg("no peripheral answered the handshake")
	l.idleLocked("no candidate answered")
}

func (l *Link) recordCandidate(c *candidate, from, to, reason string) {
	l.record(protolog.Event{
		Port:      c.name,
		Direction: protolog.DirectionInternal,
		Category:  protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{
			Entity:   protolog.StateEntityCandidate,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
