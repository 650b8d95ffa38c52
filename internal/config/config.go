package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Transport contains the knobs that govern how commands reach bots and how
// long the scheduler waits on them.
type Transport struct {
	CommandsPerSecond float64 `toml:"commands_per_second"`
	CommandBurst      int     `toml:"command_burst"`
	ListMarker        string  `toml:"list_marker"`
	IdleTimeout       int     `toml:"idle_timeout"`
	ListWaitTimeout   int     `toml:"list_wait_timeout"`
	HTTPTimeout       int     `toml:"http_timeout"`
	HTTPAttempts      int     `toml:"http_attempts"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
	Untrusted      bool   `toml:"untrusted"`
}

// Config encapsulates all configuration values for autoxdcc.
//
// Configuration sections:
//   - Paths: state, download and log directories plus the API bind address
//   - Logging: log format, level, and retention
//   - Transport: command throttling and scheduler timeouts
//   - Notifications: ntfy push notification settings
//   - Packlists: one entry per watched bot catalogue
type Config struct {
	Paths         Paths               `toml:"paths"`
	Logging       Logging             `toml:"logging"`
	Transport     Transport           `toml:"transport"`
	Notifications Notifications       `toml:"notifications"`
	Packlists     map[string]Packlist `toml:"packlists"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/axdcc/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv seeds unset environment variables from an optional .env file.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("axdcc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.SnapshotDir(), c.Paths.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath is the unix socket the daemon serves JSON-RPC on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "axdcc.sock")
}

// LockPath guards against two daemons sharing one state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "axdcc.lock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "axdcc.pid")
}

// LogPath points at the running daemon's current log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "axdcc.log")
}

// DatabasePath is the sqlite state store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "axdcc.db")
}

// SnapshotDir holds the cached copy of each packlist's last fetch.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Paths.StateDir, "packlists")
}

// SnapshotPath returns the cached packlist location for name.
func (c *Config) SnapshotPath(name string) string {
	return filepath.Join(c.SnapshotDir(), name+".txt")
}

// PacklistNames returns configured packlist names in a stable order.
func (c *Config) PacklistNames() []string {
	names := make([]string, 0, len(c.Packlists))
	for name := range c.Packlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
