// Package daemon coordinates the long-running autoxdcc process.
//
// It wires configuration, the state store, the workflow manager, the command
// outbox and metrics into a single lifecycle with flock-based locking to
// prevent multiple instances. Start registers the configured packlists (the
// first time) and enables their refresh timers; Stop pauses the timers
// without dropping scheduled transfers, so offer and completion events keep
// flowing. The optional HTTP API (chi) exposes status, shows, download
// history and Prometheus metrics behind a bearer token.
//
// Keep orchestration logic here: packlist refreshes and transfer events live
// in the workflow package while the daemon focuses on startup, shutdown, and
// the outer surfaces.
package daemon
