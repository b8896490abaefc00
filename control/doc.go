// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control and introspection layer of hioload-relay.
//
// Provides concurrent-safe state handling primitives including:
//   - Prometheus packet counters implementing api.Counters
//   - Engine statistics exported as Prometheus gauges on scrape
//   - Debug probes and state export over HTTP
//   - Configuration snapshots and SIGHUP-driven reload hooks
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
