package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Advertiser publishes the clock on the local network.
type Advertiser interface {
	Advertise(ctx context.Context, info *ServiceInfo) error
	Stop() error
}

// AdvertiserConfig configures an MDNSAdvertiser.
type AdvertiserConfig struct {
	// Interface restricts advertisement to one interface. Empty means all.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration

	Logger *zerolog.Logger
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	logger   zerolog.Logger
	register registerFunc

	mu     sync.Mutex
	server *zeroconf.Server
	active bool
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	a := &MDNSAdvertiser{config: config, register: zeroconf.Register}
	if config.Logger != nil {
		a.logger = *config.Logger
	} else {
		a.logger = log.With().Str("component", "discovery").Logger()
	}
	return a
}

// getInterfaces returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		a.logger.Warn().Err(err).Str("interface", a.config.Interface).Msg("unknown interface, advertising on all")
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers info, replacing any earlier registration.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ServiceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.shutdownLocked()

	instance := info.Instance
	if instance == "" {
		instance = DefaultInstance
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := a.register(
		instance,
		ServiceType,
		Domain,
		info.Port,
		TXTRecordsToStrings(EncodeTXT(info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}

	a.server = server
	a.active = true
	a.logger.Info().Str("instance", instance).Int("port", info.Port).Msg("advertising status endpoint")
	return nil
}

// Active reports whether a registration is live.
func (a *MDNSAdvertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Stop withdraws the registration.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownLocked()
	return nil
}

func (a *MDNSAdvertiser) shutdownLocked() {
	if a.server != nil {
		a.server.Shutdown()
	}
	a.server = nil
	a.active = false
}
