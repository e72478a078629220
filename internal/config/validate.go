package config

import (
	"errors"
	"fmt"
)

var validQualities = map[string]struct{}{
	"low":      {},
	"medium":   {},
	"high":     {},
	"lossless": {},
}

var validContainers = map[string]struct{}{
	"mkv": {},
	"mp4": {},
}

var validEncoderKinds = map[string]struct{}{
	"vaapi":    {},
	"nvenc":    {},
	"qsv":      {},
	"software": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateReplay(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Mode {
	case "fullscreen":
	case "region":
		if c.Capture.RegionWidth <= 0 || c.Capture.RegionHeight <= 0 {
			return errors.New("capture.region_width and capture.region_height must be positive when capture.mode is \"region\"")
		}
		if c.Capture.RegionX < 0 || c.Capture.RegionY < 0 {
			return errors.New("capture.region_x and capture.region_y must be >= 0")
		}
	default:
		return fmt.Errorf("capture.mode must be \"fullscreen\" or \"region\", got %q", c.Capture.Mode)
	}
	if c.Capture.FPS < 1 || c.Capture.FPS > 240 {
		return errors.New("capture.fps must be between 1 and 240")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.Preferred != "" {
		if _, ok := validEncoderKinds[c.Encoder.Preferred]; !ok {
			return fmt.Errorf("encoder.preferred must be one of vaapi, nvenc, qsv, software; got %q", c.Encoder.Preferred)
		}
	}
	for _, kind := range c.Encoder.Order {
		if _, ok := validEncoderKinds[kind]; !ok {
			return fmt.Errorf("encoder.order contains unknown encoder kind %q", kind)
		}
	}
	if _, ok := validQualities[c.Encoder.Quality]; !ok {
		return fmt.Errorf("encoder.quality must be one of low, medium, high, lossless; got %q", c.Encoder.Quality)
	}
	if _, ok := validContainers[c.Encoder.Container]; !ok {
		return fmt.Errorf("encoder.container must be mkv or mp4, got %q", c.Encoder.Container)
	}
	return nil
}

func (c *Config) validateReplay() error {
	if err := ensurePositiveMap(map[string]int{
		"replay.capacity_seconds":     c.Replay.CapacitySeconds,
		"replay.segment_seconds":      c.Replay.SegmentSeconds,
		"replay.default_save_seconds": c.Replay.DefaultSaveSeconds,
	}); err != nil {
		return err
	}
	if c.Replay.SegmentSeconds > c.Replay.CapacitySeconds {
		return errors.New("replay.segment_seconds must not exceed replay.capacity_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
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
