package config

const (
	defaultLogDir           = "~/.local/share/virtucast/logs"
	defaultStateDir         = "~/.local/share/virtucast"
	defaultOutputDir        = "output"
	defaultOutputFormat     = "png"
	defaultRenderMode       = "hook"
	defaultFrameRate        = 30
	defaultResolutionWidth  = 1920
	defaultResolutionHeight = 1080
	defaultTimeoutSeconds   = 3600
	defaultHeartbeatSeconds = 10
	defaultFrameTolerance   = 0.05
	defaultFFprobeBinary    = "ffprobe"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

var (
	defaultAnchors       = []string{"Vivian"}
	defaultCameraPresets = []string{"Wide", "Medium", "Close"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		UE5: UE5{
			RenderMode: defaultRenderMode,
		},
		Studio: Studio{
			Anchors:       append([]string(nil), defaultAnchors...),
			CameraPresets: append([]string(nil), defaultCameraPresets...),
		},
		Camera: Camera{
			FPS: defaultFrameRate,
			Resolution: Resolution{
				Width:  defaultResolutionWidth,
				Height: defaultResolutionHeight,
			},
		},
		Output: Output{
			Directory: defaultOutputDir,
			Format:    defaultOutputFormat,
		},
		Render: Render{
			TimeoutSeconds:   defaultTimeoutSeconds,
			HeartbeatSeconds: defaultHeartbeatSeconds,
			FrameTolerance:   defaultFrameTolerance,
			FFprobeBinary:    defaultFFprobeBinary,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
