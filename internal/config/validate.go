package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	for _, name := range c.PacklistNames() {
		if err := validatePacklist(name, c.Packlists[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateTransport() error {
	if c.Transport.CommandsPerSecond <= 0 {
		return errors.New("transport.commands_per_second must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"transport.command_burst":     c.Transport.CommandBurst,
		"transport.idle_timeout":      c.Transport.IdleTimeout,
		"transport.list_wait_timeout": c.Transport.ListWaitTimeout,
		"transport.http_timeout":      c.Transport.HTTPTimeout,
		"transport.http_attempts":     c.Transport.HTTPAttempts,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func validatePacklist(name string, pl Packlist) error {
	prefix := "packlists." + name
	if strings.TrimSpace(name) == "" {
		return errors.New("packlists: name must not be empty")
	}
	if pl.Current == "" {
		return fmt.Errorf("%s.current must name the bot to request from", prefix)
	}
	if pl.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("%s.max_concurrent_downloads must be positive", prefix)
	}
	if pl.RefreshInterval < 0 {
		return fmt.Errorf("%s.refresh_interval must be >= 0 (0 disables the timer)", prefix)
	}
	if pl.LastPack < 0 {
		return fmt.Errorf("%s.last_pack must be >= 0", prefix)
	}
	grammars := 0
	for _, entry := range pl.MetaType {
		trimmed := strings.ToLower(strings.TrimSpace(entry))
		switch {
		case trimmed == MetaText, trimmed == MetaJS:
			grammars++
		case strings.HasPrefix(trimmed, metaQueryPrefix):
			if !pl.UsesHTTP() {
				return fmt.Errorf("%s.meta_type: query template requires url", prefix)
			}
		default:
			return fmt.Errorf("%s.meta_type: unsupported entry %q", prefix, entry)
		}
	}
	if grammars > 1 {
		return fmt.Errorf("%s.meta_type: choose one of %q or %q", prefix, MetaText, MetaJS)
	}
	if pl.GrammarKind() == MetaJS {
		for _, key := range []string{KeyBotName, KeyPackNumber, KeySize, KeyFilename} {
			if strings.TrimSpace(pl.JSONKeys[key]) == "" {
				return fmt.Errorf("%s.json_keys.%s is required when meta_type includes %q", prefix, key, MetaJS)
			}
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
