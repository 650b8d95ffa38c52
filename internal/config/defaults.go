package config

const (
	defaultStateDir               = "~/.local/share/axdcc"
	defaultDownloadDir            = "~/Downloads/xdcc"
	defaultLogDir                 = "~/.local/state/axdcc/logs"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultAPIBind                = "127.0.0.1:7495"
	defaultCommandsPerSecond      = 1.0
	defaultCommandBurst           = 3
	defaultListMarker             = "packlist"
	defaultIdleTimeout            = 60
	defaultListWaitTimeout        = 120
	defaultHTTPTimeout            = 10
	defaultHTTPAttempts           = 3
	defaultNotifyRequestTimeout   = 10
	defaultRefreshInterval        = 900
	defaultMaxConcurrentDownloads = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Transport: Transport{
			CommandsPerSecond: defaultCommandsPerSecond,
			CommandBurst:      defaultCommandBurst,
			ListMarker:        defaultListMarker,
			IdleTimeout:       defaultIdleTimeout,
			ListWaitTimeout:   defaultListWaitTimeout,
			HTTPTimeout:       defaultHTTPTimeout,
			HTTPAttempts:      defaultHTTPAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
			Untrusted:      true,
		},
		Packlists: map[string]Packlist{},
	}
}
