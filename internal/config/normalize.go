package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeTransport()
	c.normalizeNotifications()
	c.normalizePacklists()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("AXDCC_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeTransport() {
	c.Transport.ListMarker = strings.TrimSpace(c.Transport.ListMarker)
	if c.Transport.ListMarker == "" {
		c.Transport.ListMarker = defaultListMarker
	}
	if c.Transport.IdleTimeout == 0 {
		c.Transport.IdleTimeout = defaultIdleTimeout
	}
	if c.Transport.ListWaitTimeout == 0 {
		c.Transport.ListWaitTimeout = defaultListWaitTimeout
	}
	if c.Transport.HTTPTimeout == 0 {
		c.Transport.HTTPTimeout = defaultHTTPTimeout
	}
	if c.Transport.HTTPAttempts == 0 {
		c.Transport.HTTPAttempts = defaultHTTPAttempts
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("AXDCC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePacklists() {
	if c.Packlists == nil {
		c.Packlists = map[string]Packlist{}
		return
	}
	for name, pl := range c.Packlists {
		pl.URL = strings.TrimSpace(pl.URL)
		pl.Current = strings.TrimSpace(pl.Current)
		trusted := make([]string, 0, len(pl.Trusted))
		for _, bot := range pl.Trusted {
			if trimmed := strings.TrimSpace(bot); trimmed != "" {
				trusted = append(trusted, trimmed)
			}
		}
		pl.Trusted = trusted
		if pl.MaxConcurrentDownloads == 0 {
			pl.MaxConcurrentDownloads = defaultMaxConcurrentDownloads
		}
		if len(pl.MetaType) == 0 {
			pl.MetaType = []string{MetaText}
		}
		keys := make(map[string]string, len(pl.JSONKeys))
		for key, value := range pl.JSONKeys {
			keys[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
		pl.JSONKeys = keys
		c.Packlists[name] = pl
	}
}
