// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI and by the chat client bridge.
//
// The service covers daemon lifecycle, transfer event reports, the command
// long-poll, show and packlist operations, and download history. Request and
// response types live in types.go; reuse them when adding endpoints so the
// protocol stays compatible with existing callers.
package ipc
