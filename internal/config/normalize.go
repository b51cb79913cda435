package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize(baseDir string) error {
	if err := c.normalizeUE5(baseDir); err != nil {
		return err
	}
	c.normalizeStudio()
	c.normalizeCamera()
	if err := c.normalizeOutput(baseDir); err != nil {
		return err
	}
	c.normalizeRender()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeUE5(baseDir string) error {
	// Environment overrides win over file values so CI can point a checked-in
	// workspace config at a different engine install.
	if value, ok := os.LookupEnv("VIRTUCAST_EDITOR_PATH"); ok && strings.TrimSpace(value) != "" {
		c.UE5.EditorPath = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("VIRTUCAST_PROJECT_PATH"); ok && strings.TrimSpace(value) != "" {
		c.UE5.ProjectPath = strings.TrimSpace(value)
	}

	var err error
	if c.UE5.EditorPath = strings.TrimSpace(c.UE5.EditorPath); c.UE5.EditorPath != "" {
		if c.UE5.EditorPath, err = expandPath(c.UE5.EditorPath); err != nil {
			return fmt.Errorf("ue5.editor_path: %w", err)
		}
	}
	if c.UE5.ProjectPath = strings.TrimSpace(c.UE5.ProjectPath); c.UE5.ProjectPath != "" {
		if c.UE5.ProjectPath, err = expandPath(c.UE5.ProjectPath); err != nil {
			return fmt.Errorf("ue5.project_path: %w", err)
		}
	}

	c.UE5.MapAsset = strings.TrimSpace(c.UE5.MapAsset)
	c.UE5.SequenceAsset = strings.TrimSpace(c.UE5.SequenceAsset)
	c.UE5.MRQConfigAsset = strings.TrimSpace(c.UE5.MRQConfigAsset)

	c.UE5.RenderMode = strings.ToLower(strings.TrimSpace(c.UE5.RenderMode))
	if c.UE5.RenderMode == "" {
		c.UE5.RenderMode = defaultRenderMode
	}

	if c.UE5.RenderScript = strings.TrimSpace(c.UE5.RenderScript); c.UE5.RenderScript != "" {
		if c.UE5.RenderScript, err = resolvePath(baseDir, c.UE5.RenderScript); err != nil {
			return fmt.Errorf("ue5.render_script: %w", err)
		}
	}
	if c.UE5.PresetOutputDir = strings.TrimSpace(c.UE5.PresetOutputDir); c.UE5.PresetOutputDir != "" {
		if c.UE5.PresetOutputDir, err = resolvePath(baseDir, c.UE5.PresetOutputDir); err != nil {
			return fmt.Errorf("ue5.preset_output_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStudio() {
	c.Studio.Anchors = dedupeNames(c.Studio.Anchors)
	if len(c.Studio.Anchors) == 0 {
		c.Studio.Anchors = append([]string(nil), defaultAnchors...)
	}
	c.Studio.CameraPresets = dedupeNames(c.Studio.CameraPresets)
	if len(c.Studio.CameraPresets) == 0 {
		c.Studio.CameraPresets = append([]string(nil), defaultCameraPresets...)
	}
}

func (c *Config) normalizeCamera() {
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = defaultFrameRate
	}
	if c.Camera.Resolution.Width <= 0 {
		c.Camera.Resolution.Width = defaultResolutionWidth
	}
	if c.Camera.Resolution.Height <= 0 {
		c.Camera.Resolution.Height = defaultResolutionHeight
	}
}

func (c *Config) normalizeOutput(baseDir string) error {
	var err error
	if strings.TrimSpace(c.Output.Directory) == "" {
		c.Output.Directory = defaultOutputDir
	}
	if c.Output.Directory, err = resolvePath(baseDir, c.Output.Directory); err != nil {
		return fmt.Errorf("output.directory: %w", err)
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = defaultOutputFormat
	}
	return nil
}

func (c *Config) normalizeRender() {
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Render.HeartbeatSeconds <= 0 {
		c.Render.HeartbeatSeconds = defaultHeartbeatSeconds
	}
	if c.Render.FrameTolerance <= 0 {
		c.Render.FrameTolerance = defaultFrameTolerance
	}
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		c.Render.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
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
}

func dedupeNames(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
