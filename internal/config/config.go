// Package config loads racetimer settings from a YAML file, a .env file and
// RACETIMER_* environment variables, in that order of increasing priority.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/bus"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/serialport"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/trigger"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/wire"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RACETIMER_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full process configuration.
type Config struct {
	StateFile string    `yaml:"state_file"`
	Serial    Serial    `yaml:"serial"`
	FootPedal FootPedal `yaml:"footpedal"`
	NATS      NATS      `yaml:"nats"`
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
}

// Serial configures the peripheral link.
type Serial struct {
	Enabled    bool           `yaml:"enabled"`
	DevicePath string         `yaml:"device_path"`
	Signature  link.Signature `yaml:"signature"`
	BaudRate   int            `yaml:"baud_rate"`

	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	LivenessTimeout   time.Duration `yaml:"liveness_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMax      time.Duration `yaml:"reconnect_max"`
	ReconnectJitter   float64       `yaml:"reconnect_jitter"`

	TriggerToken string `yaml:"trigger_token"`

	// ProtocolLog is a .rtlog capture file. Empty disables capture.
	ProtocolLog         string `yaml:"protocol_log"`
	ProtocolLogMaxBytes int64  `yaml:"protocol_log_max_bytes"`
}

// FootPedal configures the joystick trigger.
type FootPedal struct {
	Enabled      bool          `yaml:"enabled"`
	DeviceIndex  int           `yaml:"device_index"`
	ButtonID     int           `yaml:"button_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NATS configures the command bus.
type NATS struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HTTP configures the status server.
type HTTP struct {
	Addr      string `yaml:"addr"`
	Advertise bool   `yaml:"advertise"`
	Instance  string `yaml:"instance"`
}

// Log configures operational logging.
type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateFile: "data/stopwatch.json",
		Serial: Serial{
			Signature:         link.Signature{VID: "2341"},
			BaudRate:          serialport.DefaultBaudRate,
			HandshakeTimeout:  link.DefaultHandshakeTimeout,
			LivenessTimeout:   link.DefaultLivenessTimeout,
			DiscoveryInterval: link.DefaultDiscoveryInterval,
			ReconnectDelay:    link.DefaultReconnectDelay,
			TriggerToken:      string(wire.DefaultTriggerToken),

			ProtocolLogMaxBytes: protolog.DefaultMaxCaptureBytes,
		},
		FootPedal: FootPedal{
			PollInterval: trigger.DefaultPollInterval,
		},
		NATS: NATS{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: bus.DefaultPrefix,
		},
		HTTP: HTTP{
			Addr:     ":8090",
			Instance: "racetimer",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path (optional), then .env in the working directory, then the
// process environment.
func Load(path string) (*Config, error) {
	fs := afero.NewOsFs()
	dotenv, err := ReadDotEnv(fs, ".env")
	if err != nil {
		return nil, err
	}
	return LoadFrom(fs, path, Chain(os.LookupEnv, dotenv.Lookup))
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Chain returns a LookupFunc trying each in order.
func Chain(fns ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if v, ok := fn(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// DotEnv holds parsed .env values.
type DotEnv map[string]string

// Lookup implements LookupFunc.
func (d DotEnv) Lookup(key string) (string, bool) {
	v, ok := d[key]
	return v, ok
}

// ReadDotEnv parses path. A missing file yields an empty DotEnv.
func ReadDotEnv(fs afero.Fs, path string) (DotEnv, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return DotEnv{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return DotEnv(m), nil
}

// LoadFrom reads the YAML file at path on fs (skipped when path is empty)
// and applies overrides from env.
func LoadFrom(fs afero.Fs, path string, env LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if env != nil {
		if err := cfg.applyEnv(env); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env LookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := env(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	integer64 := func(key string, dst *int64) {
		if v, ok := env(EnvPrefix + key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := env(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("STATE_FILE", &c.StateFile)

	boolean("SERIAL_ENABLED", &c.Serial.Enabled)
	str("SERIAL_DEVICE_PATH", &c.Serial.DevicePath)
	str("SERIAL_VID", &c.Serial.Signature.VID)
	str("SERIAL_PID", &c.Serial.Signature.PID)
	str("SERIAL_PRODUCT", &c.Serial.Signature.Product)
	integer("SERIAL_BAUD_RATE", &c.Serial.BaudRate)
	duration("SERIAL_HANDSHAKE_TIMEOUT", &c.Serial.HandshakeTimeout)
	duration("SERIAL_LIVENESS_TIMEOUT", &c.Serial.LivenessTimeout)
	duration("SERIAL_HEARTBEAT_INTERVAL", &c.Serial.HeartbeatInterval)
	duration("SERIAL_RECONNECT_DELAY", &c.Serial.ReconnectDelay)
	str("SERIAL_TRIGGER_TOKEN", &c.Serial.TriggerToken)
	str("SERIAL_PROTOCOL_LOG", &c.Serial.ProtocolLog)
	integer64("SERIAL_PROTOCOL_LOG_MAX_BYTES", &c.Serial.ProtocolLogMaxBytes)

	boolean("FOOTPEDAL_ENABLED", &c.FootPedal.Enabled)
	integer("FOOTPEDAL_DEVICE_INDEX", &c.FootPedal.DeviceIndex)
	integer("FOOTPEDAL_BUTTON_ID", &c.FootPedal.ButtonID)

	boolean("NATS_ENABLED", &c.NATS.Enabled)
	str("NATS_URL", &c.NATS.URL)
	str("NATS_SUBJECT_PREFIX", &c.NATS.SubjectPrefix)

	str("HTTP_ADDR", &c.HTTP.Addr)
	boolean("HTTP_ADVERTISE", &c.HTTP.Advertise)
	str("HTTP_INSTANCE", &c.HTTP.Instance)

	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_CONSOLE", &c.Log.Console)

	return errors.Join(errs...)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.StateFile == "" {
		fail("state_file is empty")
	}

	s := c.Serial
	if s.HandshakeTimeout <= 0 {
		fail("serial.handshake_timeout must be positive")
	}
	if s.LivenessTimeout <= 0 {
		fail("serial.liveness_timeout must be positive")
	}
	if s.HeartbeatInterval < 0 {
		fail("serial.heartbeat_interval must not be negative")
	}
	if s.HeartbeatInterval > 0 && s.HeartbeatInterval >= s.LivenessTimeout {
		fail("serial.heartbeat_interval %v must be shorter than liveness_timeout %v", s.HeartbeatInterval, s.LivenessTimeout)
	}
	if s.ProtocolLogMaxBytes < 0 {
		fail("serial.protocol_log_max_bytes must not be negative")
	}
	if s.ReconnectDelay < 0 || s.ReconnectMax < 0 || s.DiscoveryInterval < 0 {
		fail("serial delays must not be negative")
	}
	if s.Enabled && s.DevicePath == "" && s.Signature.IsZero() {
		fail("serial is enabled without device_path or signature")
	}
	if s.BaudRate <= 0 {
		fail("serial.baud_rate must be positive")
	}
	if strings.ContainsAny(s.TriggerToken, " \t\r\n") {
		fail("serial.trigger_token must be a single word")
	}

	if c.FootPedal.ButtonID < 0 || c.FootPedal.ButtonID > 31 {
		fail("footpedal.button_id %d out of range 0-31", c.FootPedal.ButtonID)
	}
	if c.FootPedal.DeviceIndex < 0 {
		fail("footpedal.device_index must not be negative")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		fail("nats is enabled without url")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		fail("log.level %q", c.Log.Level)
	}

	return errors.Join(errs...)
}

// LinkConfig converts the serial section for link.New.
func (s Serial) LinkConfig() link.Config {
	return link.Config{
		DevicePath:        s.DevicePath,
		Signature:         s.Signature,
		HandshakeTimeout:  s.HandshakeTimeout,
		LivenessTimeout:   s.LivenessTimeout,
		HeartbeatInterval: s.HeartbeatInterval,
		DiscoveryInterval: s.DiscoveryInterval,
		Reconnect: link.BackoffConfig{
			Initial: s.ReconnectDelay,
			Max:     s.ReconnectMax,
			Jitter:  s.ReconnectJitter,
		},
		TriggerToken: wire.Token(s.TriggerToken),
	}
}

// PedalConfig converts the footpedal section for trigger.NewPedal.
func (f FootPedal) PedalConfig() trigger.Config {
	return trigger.Config{
		DeviceIndex:  f.DeviceIndex,
		ButtonID:     f.ButtonID,
		PollInterval: f.PollInterval,
	}
}

// ZerologLevel returns the parsed log level, defaulting to info.
func (l Log) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(l.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
