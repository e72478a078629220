package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RecordingsDir  string `toml:"recordings_dir"`
	ReplaysDir     string `toml:"replays_dir"`
	ReplayCacheDir string `toml:"replay_cache_dir"`
	ExportsDir     string `toml:"exports_dir"`
	LogDir         string `toml:"log_dir"`
}

// Capture contains configuration for the display/audio capture source.
type Capture struct {
	Display      string `toml:"display"`
	Mode         string `toml:"mode"`
	RegionX      int    `toml:"region_x"`
	RegionY      int    `toml:"region_y"`
	RegionWidth  int    `toml:"region_width"`
	RegionHeight int    `toml:"region_height"`
	FPS          int    `toml:"fps"`
	AudioEnabled bool   `toml:"audio_enabled"`
	AudioSource  string `toml:"audio_source"`
}

// Encoder contains configuration for encoder selection and quality.
type Encoder struct {
	Preferred string   `toml:"preferred"`
	Order     []string `toml:"order"`
	Quality   string   `toml:"quality"`
	Container string   `toml:"container"`
}

// Replay contains configuration for the instant-replay buffer.
type Replay struct {
	CapacitySeconds    int `toml:"capacity_seconds"`
	SegmentSeconds     int `toml:"segment_seconds"`
	DefaultSaveSeconds int `toml:"default_save_seconds"`
}

// Export contains configuration for the offline export pipeline.
type Export struct {
	DefaultPreset string `toml:"default_preset"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Recording      bool   `toml:"recording"`
	Replay         bool   `toml:"replay"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Clipforge.
//
// Configuration sections by subsystem:
//   - Paths: output, cache, and log directories
//   - Capture: display selection, region geometry, frame rate, audio
//   - Encoder: hardware encoder preference, quality tier, container
//   - Replay: ring-buffer capacity and segment cadence
//   - Export: offline export defaults
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//
// Config values are read once at daemon start; changes take effect at the
// next recording or replay session.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Encoder       Encoder       `toml:"encoder"`
	Replay        Replay        `toml:"replay"`
	Export        Export        `toml:"export"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
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

	defaultPath, err := expandPath("~/.config/clipforge/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
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
// The replay cache is expected to live on fast ephemeral storage (tmpfs);
// it is created unconditionally so a fresh boot cannot break activation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RecordingsDir, c.Paths.ReplaysDir, c.Paths.ReplayCacheDir, c.Paths.ExportsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for capture and encoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "clipforged.sock")
}

// LibraryDBPath returns the recordings library database location.
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "library.db")
}

// ReplayCapacity returns the configured ring-buffer capacity as a duration.
func (c *Config) ReplayCapacity() time.Duration {
	return time.Duration(c.Replay.CapacitySeconds) * time.Second
}

// DefaultSaveWindow returns the configured default clip length as a duration.
func (c *Config) DefaultSaveWindow() time.Duration {
	return time.Duration(c.Replay.DefaultSaveSeconds) * time.Second
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
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
