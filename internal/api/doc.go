// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates state rows and workflow snapshots into
// transport-friendly DTOs that the CLI and other consumers can render
// without coupling to internal types.
//
// # Key Types
//
// Show: a subscription with its last fetched episode, wanted resolution and
// download subdirectory.
//
// Download: one row of transfer history.
//
// PacklistStatus/Task: the live view of a packlist scheduler.
//
// ShowRequest: the validated payload for adding or updating a show. Field
// rules use go-playground/validator tags plus the custom "resolution" tag.
//
// # Services
//
// ShowService applies show operations against a ShowStore, resolving
// partial names the same way for every caller. DownloadService reads the
// history table.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Validation failures carry services.ErrValidation so the HTTP layer answers
// 400 and the CLI prints the message unchanged.
package api
