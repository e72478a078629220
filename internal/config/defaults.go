package config

const (
	defaultRecordingsDir  = "~/Videos/clipforge"
	defaultReplaysDir     = "~/Videos/clipforge/replays"
	defaultReplayCacheDir = "/dev/shm/clipforge"
	defaultExportsDir     = "~/Videos/clipforge/exports"
	defaultLogDir         = "~/.local/share/clipforge/logs"
	defaultCaptureMode    = "fullscreen"
	defaultCaptureFPS     = 60
	defaultQuality        = "high"
	defaultContainer      = "mkv"
	defaultCapacitySecs   = 120
	defaultSegmentSecs    = 2
	defaultSaveSecs       = 30
	defaultExportPreset   = "high_quality"
	defaultNotifyTimeout  = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

func defaultEncoderOrder() []string {
	return []string{"vaapi", "nvenc", "qsv", "software"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RecordingsDir:  defaultRecordingsDir,
			ReplaysDir:     defaultReplaysDir,
			ReplayCacheDir: defaultReplayCacheDir,
			ExportsDir:     defaultExportsDir,
			LogDir:         defaultLogDir,
		},
		Capture: Capture{
			Mode:         defaultCaptureMode,
			FPS:          defaultCaptureFPS,
			AudioEnabled: true,
		},
		Encoder: Encoder{
			Order:     defaultEncoderOrder(),
			Quality:   defaultQuality,
			Container: defaultContainer,
		},
		Replay: Replay{
			CapacitySeconds:    defaultCapacitySecs,
			SegmentSeconds:     defaultSegmentSecs,
			DefaultSaveSeconds: defaultSaveSecs,
		},
		Export: Export{
			DefaultPreset: defaultExportPreset,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Recording:      true,
			Replay:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
