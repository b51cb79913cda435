package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"virtucast/internal/assetref"
	"virtucast/internal/services"
)

// Render mode values accepted by ue5.render_mode.
const (
	RenderModeHook = "hook"
	RenderModeCLI  = "cli"
)

var outputFormats = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"exr":  {},
	"mp4":  {},
}

// Validate ensures the configuration is usable. Asset reference failures are
// tagged ErrAssetResolution; everything else is reported plain and classified
// by Load.
func (c *Config) Validate() error {
	if err := c.validateUE5(); err != nil {
		return err
	}
	if err := c.validateStudio(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateRender()
}

func (c *Config) validateUE5() error {
	if c.UE5.EditorPath == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/virtucast/config.toml"
		}
		return fmt.Errorf("ue5.editor_path is required. Set VIRTUCAST_EDITOR_PATH env var or edit %s (create with 'virtucast config init')", defaultPath)
	}
	if c.UE5.ProjectPath == "" {
		return errors.New("ue5.project_path is required. Set VIRTUCAST_PROJECT_PATH env var or point it at the .uproject file")
	}

	if info, err := os.Stat(c.UE5.EditorPath); err != nil || info.IsDir() {
		return fmt.Errorf("ue5.editor_path not found: %s", c.UE5.EditorPath)
	}
	if err := unix.Access(c.UE5.EditorPath, unix.X_OK); err != nil {
		return fmt.Errorf("ue5.editor_path is not executable: %s", c.UE5.EditorPath)
	}
	if !strings.HasSuffix(strings.ToLower(c.UE5.ProjectPath), ".uproject") {
		return fmt.Errorf("ue5.project_path must point to a .uproject file, got %s", c.UE5.ProjectPath)
	}
	if info, err := os.Stat(c.UE5.ProjectPath); err != nil || info.IsDir() {
		return fmt.Errorf("ue5.project_path not found: %s", c.UE5.ProjectPath)
	}

	switch c.UE5.RenderMode {
	case RenderModeHook, RenderModeCLI:
	default:
		return fmt.Errorf("ue5.render_mode must be %q or %q, got %q", RenderModeHook, RenderModeCLI, c.UE5.RenderMode)
	}

	if c.UE5.MapAsset == "" {
		return errors.New("ue5.map_asset must be set")
	}
	if c.UE5.SequenceAsset == "" {
		return errors.New("ue5.sequence_asset must be set")
	}
	if c.UE5.RenderMode == RenderModeCLI && c.UE5.MRQConfigAsset == "" {
		return errors.New("ue5.mrq_config_asset must be set when ue5.render_mode is \"cli\"")
	}
	if c.UE5.MRQConfigAsset != "" && c.UE5.PresetOutputDir == "" {
		return errors.New("ue5.preset_output_dir must be set when ue5.mrq_config_asset is configured; CLI renders are verified there")
	}
	if c.UE5.RenderScript != "" {
		if info, err := os.Stat(c.UE5.RenderScript); err != nil || info.IsDir() {
			return fmt.Errorf("ue5.render_script not found: %s", c.UE5.RenderScript)
		}
	}

	var err error
	if c.mapRef, err = assetref.Parse(c.UE5.MapAsset); err != nil {
		return services.Wrap(services.ErrAssetResolution, "config", "ue5.map_asset", "", err)
	}
	if c.sequenceRef, err = assetref.Parse(c.UE5.SequenceAsset); err != nil {
		return services.Wrap(services.ErrAssetResolution, "config", "ue5.sequence_asset", "", err)
	}
	if c.UE5.MRQConfigAsset != "" {
		if c.mrqRef, err = assetref.Parse(c.UE5.MRQConfigAsset); err != nil {
			return services.Wrap(services.ErrAssetResolution, "config", "ue5.mrq_config_asset", "", err)
		}
	}
	return nil
}

func (c *Config) validateStudio() error {
	if len(c.Studio.Anchors) == 0 {
		return errors.New("studio.anchors must declare at least one anchor")
	}
	if len(c.Studio.CameraPresets) == 0 {
		return errors.New("studio.camera_presets must declare at least one preset")
	}
	return nil
}

func (c *Config) validateCamera() error {
	return ensurePositiveMap(map[string]int{
		"camera.fps":               c.Camera.FPS,
		"camera.resolution.width":  c.Camera.Resolution.Width,
		"camera.resolution.height": c.Camera.Resolution.Height,
	})
}

func (c *Config) validateOutput() error {
	if strings.TrimSpace(c.Output.Directory) == "" {
		return errors.New("output.directory must be set")
	}
	if _, ok := outputFormats[c.Output.Format]; !ok {
		return fmt.Errorf("output.format must be one of png, jpg, jpeg, exr, mp4; got %q", c.Output.Format)
	}
	return nil
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.timeout_seconds":   c.Render.TimeoutSeconds,
		"render.heartbeat_seconds": c.Render.HeartbeatSeconds,
	}); err != nil {
		return err
	}
	if c.Render.FrameTolerance < 0 || c.Render.FrameTolerance >= 1 {
		return errors.New("render.frame_tolerance must be in [0, 1)")
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
