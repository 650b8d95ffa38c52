// Package notifications delivers download events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each event can be switched off individually in the
// [notifications] section; suppressed events are dropped without error.
package notifications
