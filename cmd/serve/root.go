// File: cmd/serve/root.go
// Author: momentics <momentics@gmail.com>

package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/momentics/hioload-relay/cmd/util"
	"github.com/momentics/hioload-relay/control"
	"github.com/momentics/hioload-relay/internal/config"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/internal/relay"
)

var (
	serveCmdConfig *config.Config
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		Long: `Start the relay with the specified configuration. Settings come from the
optional YAML file, then environment variables, then command line flags. The
format of the environment variables is HIOLOAD_<flag> (e.g. HIOLOAD_PEER_PORT=4000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

// faultPoll is how often the engine is checked for a pump fault.
const faultPoll = 500 * time.Millisecond

func init() {
	flags := ServeCmd.PersistentFlags()
	key := "config"
	flags.String(key, "", cmdUtil.WrapString("Path to a YAML configuration file. SIGHUP reloads it"))
	key = "host"
	flags.String(key, "", cmdUtil.WrapString("IPv4 address to bind both ports to, empty for all interfaces"))
	key = "client-port"
	flags.Int(key, relay.DefaultClientPort, cmdUtil.WrapString("UDP port on which clients announce their session id"))
	key = "peer-port"
	flags.Int(key, relay.DefaultPeerPort, cmdUtil.WrapString("UDP port receiving traffic to be relayed"))
	key = "peer-sockets"
	flags.Int(key, 0, cmdUtil.WrapString("Number of SO_REUSEPORT sockets on the peer port, 0 for one per CPU"))
	key = "pin-cpus"
	flags.Bool(key, false, cmdUtil.WrapString("Pin each pump thread to a CPU"))
	key = "incoming-cpu"
	flags.Bool(key, true, cmdUtil.WrapString("Bind each peer socket to a CPU queue with SO_INCOMING_CPU"))
	key = "facility"
	flags.String(key, "auto", cmdUtil.WrapString("I/O facility (auto, epoll, net)"))
	key = "buffer-count"
	flags.Int(key, 0, cmdUtil.WrapString("Buffers per pool, 0 keeps the configured default"))
	key = "buffer-size"
	flags.Int(key, 0, cmdUtil.WrapString("Bytes per buffer, 0 keeps the configured default"))
	key = "read-exhaustion"
	flags.String(key, "retry", cmdUtil.WrapString("What a pump does when no read buffer is free (retry, fail)"))
	key = "metrics"
	flags.Bool(key, true, cmdUtil.WrapString("Serve /metrics, /healthz and /debug/state"))
	key = "metrics-address"
	flags.String(key, "127.0.0.1:9090", cmdUtil.WrapString("Address of the observability endpoint"))
	key = "log-level"
	flags.String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "log-format"
	flags.String(key, "text", cmdUtil.WrapString("Log output format (text, json)"))
}

// processConfig loads the file, if any, and applies environment and flag overrides.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	serveCmdConfig = cfg
	return nil
}

// applyOverrides copies every flag or environment value that was set
// explicitly on top of cfg.
func applyOverrides(cfg *config.Config) {
	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	// Zero sizes keep the configured value; a zero port asks for an
	// ephemeral one.
	setInt := func(key string, dst *int) {
		if viper.IsSet(key) && viper.GetInt(key) != 0 {
			*dst = viper.GetInt(key)
		}
	}
	setPort := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}

	setString("host", &cfg.Relay.Host)
	setPort("client-port", &cfg.Relay.ClientPort)
	setPort("peer-port", &cfg.Relay.PeerPort)
	setInt("peer-sockets", &cfg.Relay.PeerSockets)
	setBool("pin-cpus", &cfg.Relay.PinCPUs)
	setBool("incoming-cpu", &cfg.Relay.IncomingCPU)
	setString("facility", &cfg.Transport.Facility)
	setInt("buffer-count", &cfg.Transport.BufferCount)
	setInt("buffer-size", &cfg.Transport.BufferSize)
	setString("read-exhaustion", &cfg.Transport.ReadExhaustion)
	setBool("metrics", &cfg.Observability.Enabled)
	setString("metrics-address", &cfg.Observability.Address)
	setString("log-level", &cfg.Log.Level)
	setString("log-format", &cfg.Log.Format)
}

// run starts the relay and blocks until a signal or an engine fault.
func run(cmd *cobra.Command, _ []string) error {
	cfg := serveCmdConfig

	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.Log.Level))
	log := logging.NewDynamicLogger(level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(log)

	fac, err := cfg.Facility()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := control.NewMetricsWithRegistry(reg)

	engine, err := relay.NewEngine(fac, cfg.EngineConfig(),
		relay.WithLogger(log),
		relay.WithCounters(metrics))
	if err != nil {
		return err
	}
	defer engine.Close()
	reg.MustRegister(control.NewEngineCollector(engine))

	store := control.NewConfigStore(cfg)
	store.OnReload(control.LevelReloadHook(level))

	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	probes.RegisterProbe("service", func() any { return cmdUtil.ServiceInfo() })
	probes.RegisterProbe("relay", func() any { return engine.Stats() })
	probes.RegisterProbe("config", func() any { return store.GetSnapshot() })

	if err := engine.Start(); err != nil {
		return err
	}
	log.Info("serving",
		"version", cmdUtil.Version,
		"client", engine.ClientEndpoint().String(),
		"peer", engine.PeerEndpoint().String(),
		"peer_sockets", cfg.EffectivePeerSockets(),
		"facility", fac.Name())

	if cfg.Observability.Enabled {
		srv := control.NewServer(control.ServerConfig{
			Address:      cfg.Observability.Address,
			ReadTimeout:  cfg.Observability.ReadTimeout,
			WriteTimeout: cfg.Observability.WriteTimeout,
		}, reg, probes, engine.Err, log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("observability server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := viper.GetString("config"); path != "" {
		go control.NewReloader(path, store, log).Watch(ctx)
	}

	fault := waitFault(ctx, engine)
	if fault != nil {
		log.Error("relay fault", logging.KeyError, fault)
	} else {
		log.Info("shutting down")
	}
	if err := engine.Close(); err != nil && !errors.Is(err, fault) {
		log.Warn("close", logging.KeyError, err)
	}
	return fault
}

// waitFault returns the first engine fault, or nil once ctx is done.
func waitFault(ctx context.Context, engine *relay.Engine) error {
	t := time.NewTicker(faultPoll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := engine.Err(); err != nil {
				return err
			}
		}
	}
}
