// Package config provides configuration parsing and validation for hioload-relay.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/internal/relay"
	"github.com/momentics/hioload-relay/internal/transport"
	"github.com/momentics/hioload-relay/pool"
)

// Config represents the complete relay configuration.
type Config struct {
	Relay         RelayConfig         `yaml:"relay"`
	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// RelayConfig defines the listening sockets.
type RelayConfig struct {
	Host        string `yaml:"host"`         // IPv4 bind address, empty for all
	ClientPort  int    `yaml:"client_port"`  // session announcements
	PeerPort    int    `yaml:"peer_port"`    // relayed traffic
	PeerSockets int    `yaml:"peer_sockets"` // 0 means one per CPU
	PinCPUs     bool   `yaml:"pin_cpus"`
	IncomingCPU bool   `yaml:"incoming_cpu"` // SO_INCOMING_CPU on peer sockets
}

// TransportConfig tunes every transport.
type TransportConfig struct {
	BufferCount       int           `yaml:"buffer_count"` // per pool
	BufferSize        int           `yaml:"buffer_size"`
	QueuedReads       int           `yaml:"queued_reads"`
	ReadExhaustion    string        `yaml:"read_exhaustion"` // retry, fail
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	Facility          string        `yaml:"facility"` // auto, epoll, net
	SocketReadBuffer  int           `yaml:"socket_read_buffer"`
	SocketWriteBuffer int           `yaml:"socket_write_buffer"`
}

// ObservabilityConfig defines the HTTP metrics and debug endpoint.
type ObservabilityConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			ClientPort:  relay.DefaultClientPort,
			PeerPort:    relay.DefaultPeerPort,
			PeerSockets: 0,
			IncomingCPU: true,
		},
		Transport: TransportConfig{
			BufferCount:    pool.DefaultBufferCount,
			BufferSize:     pool.DefaultBufferSize,
			QueuedReads:    1,
			ReadExhaustion: string(transport.ReadExhaustionRetry),
			MaxBackoff:     time.Millisecond,
			Facility:       aio.FacilityAuto,
		},
		Observability: ObservabilityConfig{
			Enabled:      true,
			Address:      "127.0.0.1:9090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes on top of the defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// envVarRegex matches ${VAR}, ${VAR:-default} or $VAR.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Relay.Host != "" {
		if addr, err := netip.ParseAddr(c.Relay.Host); err != nil || !addr.Is4() {
			errs = append(errs, fmt.Sprintf("relay.host must be an IPv4 address: %q", c.Relay.Host))
		}
	}
	if !validPort(c.Relay.ClientPort) {
		errs = append(errs, fmt.Sprintf("relay.client_port out of range: %d", c.Relay.ClientPort))
	}
	if !validPort(c.Relay.PeerPort) {
		errs = append(errs, fmt.Sprintf("relay.peer_port out of range: %d", c.Relay.PeerPort))
	}
	if c.Relay.ClientPort != 0 && c.Relay.ClientPort == c.Relay.PeerPort {
		errs = append(errs, "relay.client_port and relay.peer_port must differ")
	}
	if c.Relay.PeerSockets < 0 {
		errs = append(errs, "relay.peer_sockets must not be negative")
	}

	if c.Transport.BufferCount < 1 {
		errs = append(errs, "transport.buffer_count must be positive")
	}
	if c.Transport.BufferSize < 1500 {
		errs = append(errs, "transport.buffer_size must be at least 1500")
	}
	if c.Transport.QueuedReads < 1 || c.Transport.QueuedReads > c.Transport.BufferCount {
		errs = append(errs, "transport.queued_reads must be between 1 and buffer_count")
	}
	switch transport.ReadExhaustionPolicy(c.Transport.ReadExhaustion) {
	case transport.ReadExhaustionRetry, transport.ReadExhaustionFail:
	default:
		errs = append(errs, fmt.Sprintf("invalid transport.read_exhaustion: %s (must be retry or fail)", c.Transport.ReadExhaustion))
	}
	if c.Transport.MaxBackoff <= 0 {
		errs = append(errs, "transport.max_backoff must be positive")
	}
	switch c.Transport.Facility {
	case aio.FacilityAuto, aio.FacilityEpoll, aio.FacilityNet:
	default:
		errs = append(errs, fmt.Sprintf("invalid transport.facility: %s (must be auto, epoll or net)", c.Transport.Facility))
	}
	if c.Transport.SocketReadBuffer < 0 || c.Transport.SocketWriteBuffer < 0 {
		errs = append(errs, "transport socket buffers must not be negative")
	}

	if c.Observability.Enabled && c.Observability.Address == "" {
		errs = append(errs, "observability.address is required when enabled")
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validPort(p int) bool { return p >= 0 && p <= 65535 }

// EffectivePeerSockets resolves the 0 default to the CPU count.
func (c *Config) EffectivePeerSockets() int {
	if c.Relay.PeerSockets > 0 {
		return c.Relay.PeerSockets
	}
	return runtime.NumCPU()
}

// EngineConfig converts the file layout to the relay engine configuration.
func (c *Config) EngineConfig() relay.Config {
	tc := transport.DefaultConfig()
	tc.BufferCount = c.Transport.BufferCount
	tc.BufferSize = c.Transport.BufferSize
	tc.QueuedReads = c.Transport.QueuedReads
	tc.ReadExhaustion = transport.ReadExhaustionPolicy(c.Transport.ReadExhaustion)
	tc.MaxBackoff = c.Transport.MaxBackoff

	return relay.Config{
		Host:        c.Relay.Host,
		ClientPort:  uint16(c.Relay.ClientPort),
		PeerPort:    uint16(c.Relay.PeerPort),
		PeerSockets: c.EffectivePeerSockets(),
		PinCPUs:     c.Relay.PinCPUs,
		IncomingCPU: c.Relay.IncomingCPU,
		ReadBuffer:  c.Transport.SocketReadBuffer,
		WriteBuffer: c.Transport.SocketWriteBuffer,
		Transport:   tc,
	}
}

// Facility resolves the configured I/O facility.
func (c *Config) Facility() (aio.Facility, error) {
	return aio.ByName(c.Transport.Facility)
}
