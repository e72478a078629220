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
	c.normalizeCapture()
	c.normalizeEncoder()
	c.normalizeReplay()
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		c.Paths.RecordingsDir = defaultRecordingsDir
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReplaysDir) == "" {
		c.Paths.ReplaysDir = defaultReplaysDir
	}
	if c.Paths.ReplaysDir, err = expandPath(c.Paths.ReplaysDir); err != nil {
		return fmt.Errorf("paths.replays_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReplayCacheDir) == "" {
		c.Paths.ReplayCacheDir = defaultReplayCacheDir
	}
	if c.Paths.ReplayCacheDir, err = expandPath(c.Paths.ReplayCacheDir); err != nil {
		return fmt.Errorf("paths.replay_cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportsDir) == "" {
		c.Paths.ExportsDir = defaultExportsDir
	}
	if c.Paths.ExportsDir, err = expandPath(c.Paths.ExportsDir); err != nil {
		return fmt.Errorf("paths.exports_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Display = strings.TrimSpace(c.Capture.Display)
	if c.Capture.Display == "" {
		if value, ok := os.LookupEnv("DISPLAY"); ok {
			c.Capture.Display = strings.TrimSpace(value)
		}
	}
	c.Capture.Mode = strings.ToLower(strings.TrimSpace(c.Capture.Mode))
	if c.Capture.Mode == "" {
		c.Capture.Mode = defaultCaptureMode
	}
	if c.Capture.FPS <= 0 {
		c.Capture.FPS = defaultCaptureFPS
	}
	c.Capture.AudioSource = strings.TrimSpace(c.Capture.AudioSource)
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Preferred = strings.ToLower(strings.TrimSpace(c.Encoder.Preferred))
	c.Encoder.Quality = strings.ToLower(strings.TrimSpace(c.Encoder.Quality))
	if c.Encoder.Quality == "" {
		c.Encoder.Quality = defaultQuality
	}
	c.Encoder.Container = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c.Encoder.Container, ".")))
	if c.Encoder.Container == "" {
		c.Encoder.Container = defaultContainer
	}
	if len(c.Encoder.Order) == 0 {
		c.Encoder.Order = defaultEncoderOrder()
	} else {
		order := make([]string, 0, len(c.Encoder.Order))
		seen := make(map[string]struct{}, len(c.Encoder.Order))
		for _, kind := range c.Encoder.Order {
			normalized := strings.ToLower(strings.TrimSpace(kind))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			order = append(order, normalized)
		}
		if len(order) == 0 {
			order = defaultEncoderOrder()
		}
		c.Encoder.Order = order
	}
}

func (c *Config) normalizeReplay() {
	if c.Replay.CapacitySeconds <= 0 {
		c.Replay.CapacitySeconds = defaultCapacitySecs
	}
	if c.Replay.SegmentSeconds <= 0 {
		c.Replay.SegmentSeconds = defaultSegmentSecs
	}
	if c.Replay.DefaultSaveSeconds <= 0 {
		c.Replay.DefaultSaveSeconds = defaultSaveSecs
	}
}

func (c *Config) normalizeExport() {
	c.Export.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Export.DefaultPreset))
	if c.Export.DefaultPreset == "" {
		c.Export.DefaultPreset = defaultExportPreset
	}
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
}
