// Package config handles loading and managing mailpane configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("5s") in
// config.toml.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RemoteConfig points the client at a message server.
type RemoteConfig struct {
	URL           string   `toml:"url"`            // Server base URL
	APIKey        string   `toml:"api_key"`        // Sent as X-API-Key
	AllowInsecure bool     `toml:"allow_insecure"` // Permit plain http://
	Timeout       Duration `toml:"timeout"`        // Per-request timeout
}

// ClientConfig tunes the mailbox client.
type ClientConfig struct {
	PollInterval  Duration `toml:"poll_interval"`  // Counts refresh interval, whole seconds
	ReenableDelay Duration `toml:"reenable_delay"` // Compose cooldown after a send settles
	SwitchToSent  bool     `toml:"switch_to_sent"` // Open Sent after a successful send
}

// ServerConfig holds the development message server configuration.
type ServerConfig struct {
	APIPort  int    `toml:"api_port"`  // HTTP server port (default: 8080)
	BindAddr string `toml:"bind_addr"` // Listen address (default: 127.0.0.1)
	APIKey   string `toml:"api_key"`   // API authentication key
	User     string `toml:"user"`      // Address whose mailboxes are served

	CORSOrigins []string `toml:"cors_origins"` // Browser origins allowed to call the API
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// Config represents the mailpane configuration.
type Config struct {
	Remote RemoteConfig `toml:"remote"`
	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DefaultHome returns the default mailpane home directory.
// Respects MAILPANE_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILPANE_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailpane"
	}
	return filepath.Join(home, ".mailpane")
}

// NewDefaultConfig returns a configuration with default values rooted at
// DefaultHome.
func NewDefaultConfig() *Config {
	return newDefaultConfig(DefaultHome())
}

func newDefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Remote: RemoteConfig{
			Timeout: Duration(30 * time.Second),
		},
		Client: ClientConfig{
			PollInterval:  Duration(5 * time.Second),
			ReenableDelay: Duration(500 * time.Millisecond),
			SwitchToSent:  true,
		},
		Server: ServerConfig{
			APIPort:  8080,
			BindAddr: "127.0.0.1",
			User:     "me@mailpane.local",
		},
		Data: DataConfig{
			DataDir: homeDir,
		},
		configPath: filepath.Join(homeDir, "config.toml"),
	}
}

// Load reads the configuration.
//
// path is an explicit --config file; it must exist, and relative paths inside
// it resolve against its directory. homeDir overrides the home directory
// (--home). With neither set, <DefaultHome>/config.toml is read if present.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""

	switch {
	case homeDir != "":
		homeDir = expandPath(homeDir)
	case explicit:
		homeDir = filepath.Dir(expandPath(path))
	default:
		homeDir = DefaultHome()
	}

	if explicit {
		path = expandPath(path)
	} else {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := newDefaultConfig(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		// Config file is optional - use defaults if not present
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w%s", err, backslashHint(err))
	}

	cfg.Data.DataDir = resolvePath(cfg.Data.DataDir, filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Client.PollInterval.Std() < time.Second {
		return fmt.Errorf("client.poll_interval must be at least 1s, got %s", c.Client.PollInterval.Std())
	}
	if c.Client.PollInterval.Std()%time.Second != 0 {
		return fmt.Errorf("client.poll_interval must be a whole number of seconds, got %s", c.Client.PollInterval.Std())
	}
	if c.Client.ReenableDelay.Std() < 0 {
		return fmt.Errorf("client.reenable_delay must not be negative")
	}
	if c.Server.APIPort < 0 || c.Server.APIPort > 65535 {
		return fmt.Errorf("server.api_port out of range: %d", c.Server.APIPort)
	}
	return nil
}

// Save writes the configuration to its config file, creating the home
// directory if needed.
func (c *Config) Save() error {
	path := c.ConfigFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// The file may hold API keys.
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0o700)
}

// ConfigFilePath returns the config file that was (or would be) loaded.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// DatabaseDSN returns the path to the development server's SQLite database.
func (c *Config) DatabaseDSN() string {
	return filepath.Join(c.Data.DataDir, "mailpane.db")
}

// LogPath returns the file the terminal client logs to.
func (c *Config) LogPath() string {
	return filepath.Join(c.HomeDir, "mailpane.log")
}

// ServerAddr returns the listen address of the development server.
func (c *Config) ServerAddr() string {
	return c.Server.BindAddr + ":" + strconv.Itoa(c.Server.APIPort)
}

// RemoteURL returns the server the client talks to. Without a configured
// remote it is the local development server.
func (c *Config) RemoteURL() string {
	if c.Remote.URL != "" {
		return c.Remote.URL
	}
	host := c.Server.BindAddr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.APIPort)
}

// RemoteIsLocal reports whether the client falls back to the local server.
func (c *Config) RemoteIsLocal() bool {
	return c.Remote.URL == ""
}

// backslashHint explains the usual cause of TOML escape errors: Windows
// paths in double-quoted strings.
func backslashHint(err error) string {
	msg := err.Error()
	if !strings.Contains(msg, "invalid escape") && !strings.Contains(msg, "hexadecimal digits") {
		return ""
	}
	return "\n\nhint: backslashes in double-quoted TOML strings are escapes. " +
		"Use forward slashes (C:/Users/me/mailpane) or single quotes ('C:\\Users\\me\\mailpane')."
}

// resolvePath expands ~ and makes relative paths absolute against base.
func resolvePath(path, base string) string {
	path = expandPath(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
