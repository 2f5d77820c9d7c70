// Package bus bridges the race clock to NATS. Operator commands arrive on
// per-command subjects, the schedule side pushes the active run, and every
// stopwatch change is published as a JSON snapshot.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/command"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "racetimer"

// ErrStarted is returned by Start on a running bridge.
var ErrStarted = errors.New("bus bridge already started")

// Conn is the part of *nats.Conn the bridge uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// CommandHandler applies decoded commands.
type CommandHandler interface {
	Handle(cmd command.Command) error
}

// RunSetter receives active-run updates.
type RunSetter interface {
	Set(run race.Run)
}

// Reply answers a command request.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CommandSubject returns the subject for one command.
func CommandSubject(prefix string, name command.Name) string {
	return prefix + ".cmd." + string(name)
}

// StopwatchSubject returns the snapshot subject.
func StopwatchSubject(prefix string) string {
	return prefix + ".stopwatch"
}

// RunSubject returns the active-run subject.
func RunSubject(prefix string) string {
	return prefix + ".run.set"
}

// Config configures a Bridge.
type Config struct {
	Prefix string
	Logger *zerolog.Logger
}

// Bridge connects a Conn to the command dispatcher and the run holder.
type Bridge struct {
	conn    Conn
	handler CommandHandler
	runs    RunSetter
	prefix  string
	logger  zerolog.Logger

	mu      sync.Mutex
	subs    []*nats.Subscription
	started bool
}

// New creates a Bridge. runs may be nil if the schedule side is not on the
// bus.
func New(conn Conn, handler CommandHandler, runs RunSetter, cfg Config) *Bridge {
	b := &Bridge{
		conn:    conn,
		handler: handler,
		runs:    runs,
		prefix:  cfg.Prefix,
	}
	if b.prefix == "" {
		b.prefix = DefaultPrefix
	}
	if cfg.Logger != nil {
		b.logger = *cfg.Logger
	} else {
		b.logger = log.With().Str("component", "bus").Logger()
	}
	return b
}

// Start subscribes to the command and run subjects.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrStarted
	}

	sub, err := b.conn.Subscribe(b.prefix+".cmd.*", b.handleCommand)
	if err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	b.subs = append(b.subs, sub)

	if b.runs != nil {
		sub, err = b.conn.Subscribe(RunSubject(b.prefix), b.handleRun)
		if err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("subscribe run updates: %w", err)
		}
		b.subs = append(b.subs, sub)
	}

	b.started = true
	b.logger.Info().Str("prefix", b.prefix).Msg("bus bridge started")
	return nil
}

// Close drops the subscriptions. The connection is left open.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked()
	b.started = false
}

func (b *Bridge) unsubscribeLocked() {
	for _, sub := range b.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Str("subject", sub.Subject).Msg("unsubscribe failed")
		}
	}
	b.subs = nil
}

// PublishStopwatch publishes a snapshot. It matches engine.Observer and
// does not block: NATS buffers outbound messages.
func (b *Bridge) PublishStopwatch(sw *stopwatch.Stopwatch) {
	data, err := json.Marshal(sw)
	if err != nil {
		b.logger.Error().Err(err).Msg("encode stopwatch snapshot")
		return
	}
	if err := b.conn.Publish(StopwatchSubject(b.prefix), data); err != nil {
		b.logger.Warn().Err(err).Msg("publish stopwatch snapshot")
	}
}

func (b *Bridge) handleCommand(msg *nats.Msg) {
	name := command.Name(strings.TrimPrefix(msg.Subject, b.prefix+".cmd."))

	cmd, err := command.Decode(name, msg.Data)
	if err == nil {
		err = b.handler.Handle(cmd)
	}

	reply := Reply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
		b.logger.Warn().Str("command", string(name)).Err(err).Msg("command failed")
	}
	b.respond(msg, reply)
}

func (b *Bridge) handleRun(msg *nats.Msg) {
	var run race.Run
	if err := json.Unmarshal(msg.Data, &run); err != nil {
		b.logger.Warn().Err(err).Msg("ignoring malformed run update")
		b.respond(msg, Reply{Error: err.Error()})
		return
	}
	b.runs.Set(run)
	b.logger.Info().Str("run", run.Name).Int("runners", run.AssignedCount()).Bool("coop", run.Coop).Msg("active run updated")
	b.respond(msg, Reply{OK: true})
}

func (b *Bridge) respond(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := b.conn.Publish(msg.Reply, data); err != nil {
		b.logger.Warn().Err(err).Msg("reply failed")
	}
}

// ConnectConfig configures Connect.
type ConnectConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConnectConfig returns reconnect-forever defaults.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		URL:           nats.DefaultURL,
		Name:          "racetimer",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with logging handlers attached.
func Connect(cfg ConnectConfig) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
