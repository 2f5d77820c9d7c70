package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/GamesDoneQuick/agdq17-layouts/internal/config"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/bus"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/command"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/discovery"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/persistence"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/serialport"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/trigger"
)

const shutdownTimeout = 5 * time.Second

// appDeps are the process-level resources an app is built from. Tests swap
// them for in-memory versions.
type appDeps struct {
	Fs         afero.Fs
	Clock      clockwork.Clock
	Enumerator link.Enumerator
	Opener     link.Opener
	OpenPad    trigger.OpenFunc
	ConnectBus func(bus.ConnectConfig) (*nats.Conn, error)
	Advertiser discovery.Advertiser
}

func defaultDeps(cfg *config.Config) appDeps {
	return appDeps{
		Fs:         afero.NewOsFs(),
		Clock:      clockwork.NewRealClock(),
		Enumerator: serialport.Enumerator{},
		Opener:     serialport.Opener{BaudRate: cfg.Serial.BaudRate},
		OpenPad:    trigger.OpenJoystick,
		ConnectBus: bus.Connect,
		Advertiser: discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{}),
	}
}

// app wires the clock engine to its peripherals and outer surfaces.
type app struct {
	cfg  *config.Config
	deps appDeps
	id   string

	runs       *race.Holder
	engine     *engine.Engine
	dispatcher *command.Dispatcher
	device     link.Device
	store      *persistence.StopwatchStore
	saver      *persistence.Saver
	pedal      *trigger.Pedal
	nc         *nats.Conn
	bridge     *bus.Bridge
	status     *statusServer
	capture    *protolog.FileLogger
}

func newApp(cfg *config.Config, deps appDeps) (*app, error) {
	a := &app{
		cfg:  cfg,
		deps: deps,
		id:   uuid.NewString(),
		runs: race.NewHolder(race.Run{}),
	}

	a.engine = engine.New(engine.Config{Clock: deps.Clock, Runs: a.runs})
	a.dispatcher = command.NewDispatcher(a.engine, a.runs, nil)

	a.store = persistence.NewStopwatchStore(deps.Fs, cfg.StateFile, deps.Clock)
	a.restore()
	a.saver = persistence.NewSaver(a.store, nil)
	a.engine.OnChange(a.saver.Submit)

	if err := a.buildDevice(); err != nil {
		a.engine.Close()
		return nil, err
	}

	if cfg.FootPedal.Enabled {
		pc := cfg.FootPedal.PedalConfig()
		pc.Clock = deps.Clock
		a.pedal = trigger.NewPedal(pc, deps.OpenPad)
		a.pedal.OnPress(a.dispatcher.Toggle)
	}

	a.status = newStatusServer(a.engine, a.device, a.runs, a.id)
	return a, nil
}

// restore loads the persisted stopwatch. A corrupt file is not fatal: the
// clock starts fresh and the file is overwritten on the next change.
func (a *app) restore() {
	sw, err := a.store.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", a.store.Path()).Msg("ignoring unreadable stopwatch state")
		return
	}
	if sw == nil {
		log.Info().Str("path", a.store.Path()).Msg("no saved stopwatch, starting fresh")
		return
	}
	a.engine.Restore(sw)
	log.Info().
		Str("state", sw.State.String()).
		Int("raw", a.engine.Snapshot().Raw).
		Msg("restored stopwatch")
}

func (a *app) buildDevice() error {
	sc := a.cfg.Serial
	if !sc.Enabled {
		a.device = link.Noop{}
		return nil
	}

	lc := sc.LinkConfig()
	lc.Clock = a.deps.Clock

	var sinks []protolog.Logger
	if sc.ProtocolLog != "" {
		fl, err := protolog.NewFileLogger(a.deps.Fs, sc.ProtocolLog, sc.ProtocolLogMaxBytes)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		a.capture = fl
		sinks = append(sinks, fl)
	}
	sinks = append(sinks, protolog.NewZerologAdapter(log.With().Str("component", "protolog").Logger()))
	lc.ProtocolLogger = protolog.NewMultiLogger(sinks...)

	l, err := link.New(lc, a.deps.Enumerator, a.deps.Opener)
	if err != nil {
		if a.capture != nil {
			_ = a.capture.Close()
		}
		return fmt.Errorf("configure serial link: %w", err)
	}
	l.OnLinked(a.engine.MirrorState)
	l.OnTrigger(a.dispatcher.Toggle)
	l.OnStateChange(func(from, to link.State) {
		log.Info().Str("from", from.String()).Str("link_state", to.String()).Msg("link state changed")
	})

	a.device = l
	a.engine.SetLink(l)
	return nil
}

// run starts every component and blocks until ctx is done.
func (a *app) run(ctx context.Context) error {
	saverCtx, stopSaver := context.WithCancel(context.Background())
	go a.saver.Run(saverCtx)

	defer func() {
		a.engine.Close()
		stopSaver()
		<-a.saver.Done()
		if a.capture != nil {
			_ = a.capture.Close()
		}
	}()

	if err := a.device.Start(ctx); err != nil {
		return fmt.Errorf("start serial link: %w", err)
	}
	defer a.device.Close()

	if a.pedal != nil {
		if err := a.pedal.Start(ctx); err != nil {
			return fmt.Errorf("start foot pedal: %w", err)
		}
		defer a.pedal.Close()
	}

	if a.cfg.NATS.Enabled {
		if err := a.startBus(); err != nil {
			return err
		}
		defer a.stopBus()
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.status.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	if a.cfg.HTTP.Advertise && a.deps.Advertiser != nil {
		a.advertise(ctx, ln.Addr().String())
		defer a.deps.Advertiser.Stop()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("status server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown")
	}
	log.Info().Msg("shutting down")
	return nil
}

func (a *app) startBus() error {
	cc := bus.DefaultConnectConfig()
	cc.URL = a.cfg.NATS.URL
	nc, err := a.deps.ConnectBus(cc)
	if err != nil {
		return err
	}
	a.nc = nc
	a.bridge = bus.New(nc, a.dispatcher, a.runs, bus.Config{Prefix: a.cfg.NATS.SubjectPrefix})
	if err := a.bridge.Start(); err != nil {
		nc.Close()
		return err
	}
	a.engine.OnChange(a.bridge.PublishStopwatch)
	a.bridge.PublishStopwatch(a.engine.Snapshot())
	return nil
}

func (a *app) stopBus() {
	a.bridge.Close()
	if err := a.nc.Drain(); err != nil {
		a.nc.Close()
	}
}

func (a *app) advertise(ctx context.Context, addr string) {
	port, err := discovery.PortFromAddr(addr)
	if err != nil {
		log.Warn().Err(err).Msg("not advertising status endpoint")
		return
	}
	info := &discovery.ServiceInfo{
		Instance: a.cfg.HTTP.Instance,
		Port:     port,
		Version:  Version,
		ID:       a.id,
		Run:      a.runs.ActiveRun().Name,
	}
	if err := a.deps.Advertiser.Advertise(ctx, info); err != nil {
		log.Warn().Err(err).Msg("mDNS advertisement failed")
	}
}
