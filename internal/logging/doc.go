// Package logging assembles structured slog loggers and formatting helpers
// used across autoxdcc.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so packlist code can tag log
// lines with the packlist name and correlation IDs. The console handler
// lifts the component and packlist fields to the front of each line. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
