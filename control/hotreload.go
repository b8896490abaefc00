// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// SIGHUP-driven configuration reload. Only settings that can change under a
// running engine are applied live; the rest are reported as requiring a
// restart.

package control

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/momentics/hioload-relay/internal/config"
	"github.com/momentics/hioload-relay/internal/logging"
)

// Reloader re-reads the configuration file into a ConfigStore.
type Reloader struct {
	path  string
	store *ConfigStore
	log   *slog.Logger
}

// NewReloader creates a reloader for the file at path.
func NewReloader(path string, store *ConfigStore, log *slog.Logger) *Reloader {
	return &Reloader{path: path, store: store, log: log}
}

// Reload loads the file, validates it and applies it. An invalid file leaves
// the active configuration untouched.
func (r *Reloader) Reload() error {
	next, err := config.Load(r.path)
	if err != nil {
		r.log.Error("config reload failed", logging.KeyError, err)
		return err
	}
	if fields := RestartRequired(r.store.Get(), next); len(fields) > 0 {
		r.log.Warn("config changes need a restart", "fields", strings.Join(fields, ","))
	}
	r.store.SetConfig(next)
	r.log.Info("config reloaded", "path", r.path)
	return nil
}

// Watch reloads on every SIGHUP until ctx is done.
func (r *Reloader) Watch(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			_ = r.Reload()
		}
	}
}

// RestartRequired lists the settings that differ between old and next and
// cannot be applied to a running engine.
func RestartRequired(old, next *config.Config) []string {
	var out []string
	if old.Relay != next.Relay {
		out = append(out, "relay")
	}
	if old.Transport != next.Transport {
		out = append(out, "transport")
	}
	if old.Observability != next.Observability {
		out = append(out, "observability")
	}
	return out
}

// LevelReloadHook keeps level in step with log.level.
func LevelReloadHook(level *slog.LevelVar) func(old, next *config.Config) {
	return func(_, next *config.Config) {
		level.Set(logging.ParseLevel(next.Log.Level))
	}
}
