// Package state persists subscriptions, packlist cursors and download
// history in SQLite.
//
// The Store is the single owner of durable state: the packlist manager reads
// subscriptions to decide eligibility and writes back episode bumps, cursor
// moves and history rows; the control surfaces edit subscriptions. Schema
// changes bump schemaVersion in schema.go; an older database fails fast with
// ErrSchemaMismatch instead of being migrated.
package state
