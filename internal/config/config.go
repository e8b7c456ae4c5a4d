// Package config loads and saves the mutewatch configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "MUTEWATCH_CONFIG"

// DefaultStopKey is the global key that stops the watchdog.
const DefaultStopKey = "q"

var (
	// DefaultVolumeCommand queries the playback volume as a percentage.
	DefaultVolumeCommand = []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", "Get-AudioDevice -PlaybackVolume"}

	// DefaultMuteKeysCommand sends VK_VOLUME_MUTE through WScript.Shell.
	DefaultMuteKeysCommand = []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", "(New-Object -ComObject WScript.Shell).SendKeys([char]173)"}
)

// Config is the mutewatch configuration.
// Loaded from <UserConfigDir>/mutewatch/mutewatch.toml
type Config struct {
	Intervals   IntervalsConfig   `toml:"intervals"`
	Suppression SuppressionConfig `toml:"suppression"`
	Thresholds  ThresholdsConfig  `toml:"thresholds"`
	Commands    CommandsConfig    `toml:"commands"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Notify      NotifyConfig      `toml:"notify"`
	Hotkey      HotkeyConfig      `toml:"hotkey"`
}

// IntervalsConfig holds the loop sleep durations.
type IntervalsConfig struct {
	Poll       Duration `toml:"poll"`       // between unmuted checks
	Cooldown   Duration `toml:"cooldown"`   // after a mute
	Suppressed Duration `toml:"suppressed"` // while suppression is active
	Backoff    Duration `toml:"backoff"`    // after a failed iteration
}

// SuppressionConfig controls the user override.
type SuppressionConfig struct {
	Duration Duration `toml:"duration"`
}

// ThresholdsConfig holds the audibility cutoffs.
type ThresholdsConfig struct {
	Endpoint float64 `toml:"endpoint"` // master scalar 0..1
	Session  float64 `toml:"session"`  // session volume 0..1
	Command  float64 `toml:"command"`  // percent 0..100
	Mixer    float64 `toml:"mixer"`    // channel average 0..1
}

// CommandsConfig holds the external command fallbacks.
type CommandsConfig struct {
	Volume   []string `toml:"volume"`    // empty disables the command probe
	MuteKeys []string `toml:"mute_keys"` // empty disables the scripted keystroke
	Timeout  Duration `toml:"timeout"`
}

// CatalogConfig selects the media process catalog.
type CatalogConfig struct {
	Path  string `toml:"path"`  // empty uses the built-in catalog
	Watch bool   `toml:"watch"` // reload on change
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Desktop   bool     `toml:"desktop"`
	RateLimit Duration `toml:"rate_limit"`
}

// HotkeyConfig holds the global stop key.
type HotkeyConfig struct {
	Stop string `toml:"stop"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Intervals: IntervalsConfig{
			Poll:       Duration(time.Second),
			Cooldown:   Duration(5 * time.Second),
			Suppressed: Duration(10 * time.Second),
			Backoff:    Duration(2 * time.Second),
		},
		Suppression: SuppressionConfig{
			Duration: Duration(5 * time.Minute),
		},
		Thresholds: ThresholdsConfig{
			Endpoint: 0.01,
			Session:  0.0,
			Command:  1.0,
			Mixer:    0.20,
		},
		Commands: CommandsConfig{
			Volume:   append([]string(nil), DefaultVolumeCommand...),
			MuteKeys: append([]string(nil), DefaultMuteKeysCommand...),
			Timeout:  Duration(3 * time.Second),
		},
		Catalog: CatalogConfig{
			Path:  "",
			Watch: true,
		},
		Notify: NotifyConfig{
			Desktop:   true,
			RateLimit: Duration(5 * time.Second),
		},
		Hotkey: HotkeyConfig{
			Stop: DefaultStopKey,
		},
	}
}

// Path returns the config file path. MUTEWATCH_CONFIG wins over the
// per-user config directory.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return expandPath(p), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "mutewatch", "mutewatch.toml"), nil
}

// LogPath returns where logs go while the terminal UI is running.
func LogPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "mutewatch", "mutewatch.log"), nil
}

// Load reads the configuration. An empty path uses Path(). A missing
// file returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Catalog.Path = expandPath(cfg.Catalog.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration atomically. An empty path uses Path().
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Marshal encodes the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	intervals := []struct {
		name string
		d    Duration
	}{
		{"intervals.poll", c.Intervals.Poll},
		{"intervals.cooldown", c.Intervals.Cooldown},
		{"intervals.suppressed", c.Intervals.Suppressed},
		{"intervals.backoff", c.Intervals.Backoff},
		{"suppression.duration", c.Suppression.Duration},
		{"commands.timeout", c.Commands.Timeout},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", iv.name, iv.d))
		}
	}

	unit := []struct {
		name string
		v    float64
	}{
		{"thresholds.endpoint", c.Thresholds.Endpoint},
		{"thresholds.session", c.Thresholds.Session},
		{"thresholds.mixer", c.Thresholds.Mixer},
	}
	for _, th := range unit {
		if th.v < 0 || th.v >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1), got %v", th.name, th.v))
		}
	}
	if c.Thresholds.Command < 0 || c.Thresholds.Command >= 100 {
		errs = append(errs, fmt.Errorf("thresholds.command must be in [0, 100), got %v", c.Thresholds.Command))
	}

	if c.Notify.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("notify.rate_limit must not be negative, got %s", c.Notify.RateLimit))
	}

	if _, err := c.StopKey(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// StopKey returns the stop key as a single letter.
func (c *Config) StopKey() (rune, error) {
	k := strings.ToLower(strings.TrimSpace(c.Hotkey.Stop))
	if len(k) != 1 || k[0] < 'a' || k[0] > 'z' {
		return 0, fmt.Errorf("hotkey.stop must be a single letter, got %q", c.Hotkey.Stop)
	}
	// the watcher is global, so a prompt key would also stop the watchdog
	if k == "a" || k == "c" {
		return 0, fmt.Errorf("hotkey.stop %q is reserved for the mute prompt", c.Hotkey.Stop)
	}
	return rune(k[0]), nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
