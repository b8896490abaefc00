package serve

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/momentics/hioload-relay/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := config.Default()
	cfg.Relay.Host = "10.0.0.1"

	viper.Set("client-port", 0)
	viper.Set("peer-port", 4000)
	viper.Set("pin-cpus", true)
	viper.Set("read-exhaustion", "fail")
	viper.Set("buffer-count", 0)
	viper.Set("log-level", "debug")
	applyOverrides(cfg)

	if cfg.Relay.ClientPort != 0 || cfg.Relay.PeerPort != 4000 || !cfg.Relay.PinCPUs {
		t.Errorf("relay overrides not applied: %+v", cfg.Relay)
	}
	if cfg.Relay.Host != "10.0.0.1" {
		t.Errorf("unset key replaced file value: %q", cfg.Relay.Host)
	}
	if cfg.Transport.ReadExhaustion != "fail" || cfg.Log.Level != "debug" {
		t.Errorf("string overrides not applied: %+v %+v", cfg.Transport, cfg.Log)
	}
	if cfg.Transport.BufferCount != config.Default().Transport.BufferCount {
		t.Errorf("zero buffer count must keep the default, got %d", cfg.Transport.BufferCount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config invalid: %v", err)
	}
}

func TestApplyOverrides_ZeroPortFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	if err := ServeCmd.ParseFlags([]string{"--client-port", "0", "--peer-port=0", "--buffer-count", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := viper.BindPFlags(ServeCmd.Flags()); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	applyOverrides(cfg)

	if cfg.Relay.ClientPort != 0 || cfg.Relay.PeerPort != 0 {
		t.Errorf("explicit zero ports not applied: %+v", cfg.Relay)
	}
	if cfg.Transport.BufferCount != config.Default().Transport.BufferCount {
		t.Errorf("zero buffer count must keep the default, got %d", cfg.Transport.BufferCount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("ephemeral ports rejected: %v", err)
	}
}
