// Package cmd implements the command-line interface of hioload-relay.
//
// The package is organized into several subpackages:
//
//   - serve: runs the relay with its observability endpoint
//   - bench: drives a running relay with simulated sessions
//   - util: shared flag and environment handling (internal use)
//
// See hioload-relay --help for a list of all commands.
package cmd
