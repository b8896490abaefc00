// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with snapshot reads and reload listeners.

package control

import (
	"sync"

	"github.com/momentics/hioload-relay/internal/config"
)

// ConfigStore holds the active configuration and notifies listeners when a
// new one is applied.
type ConfigStore struct {
	mu        sync.RWMutex
	current   *config.Config
	listeners []func(old, next *config.Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg *config.Config) *ConfigStore {
	return &ConfigStore{current: cfg}
}

// Get returns the active configuration. Callers must not modify it.
func (cs *ConfigStore) Get() *config.Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.current
}

// GetSnapshot returns a copy of the active configuration.
func (cs *ConfigStore) GetSnapshot() config.Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return *cs.current
}

// SetConfig replaces the configuration and runs every listener synchronously,
// in registration order.
func (cs *ConfigStore) SetConfig(next *config.Config) {
	cs.mu.Lock()
	old := cs.current
	cs.current = next
	listeners := append([]func(old, next *config.Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(old, next)
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(old, next *config.Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
