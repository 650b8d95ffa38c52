// Package config loads, normalizes, and validates autoxdcc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AXDCC_API_TOKEN, optionally sourced from a .env file next to the config.
// The Config type centralizes the daemon directories, transport throttling,
// and one [packlists.<name>] table per watched bot catalogue.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, resolved grammar selectors, and clear validation errors.
package config
