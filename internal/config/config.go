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

	"virtucast/internal/assetref"
	"virtucast/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// UE5 contains the engine, project, and asset references a render needs.
type UE5 struct {
	EditorPath      string `toml:"editor_path"`
	ProjectPath     string `toml:"project_path"`
	MapAsset        string `toml:"map_asset"`
	SequenceAsset   string `toml:"sequence_asset"`
	MRQConfigAsset  string `toml:"mrq_config_asset"`
	RenderMode      string `toml:"render_mode"`
	RenderScript    string `toml:"render_script"`
	PresetOutputDir string `toml:"preset_output_dir"`
}

// Studio declares the anchor and camera vocabulary scripts may reference.
type Studio struct {
	Anchors       []string `toml:"anchors"`
	CameraPresets []string `toml:"camera_presets"`
}

// Resolution is the render target size in pixels.
type Resolution struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Camera contains frame rate and resolution settings.
type Camera struct {
	FPS        int        `toml:"fps"`
	Resolution Resolution `toml:"resolution"`
}

// Output contains the render output root and image format.
type Output struct {
	Directory string `toml:"directory"`
	Format    string `toml:"format"`
}

// Render contains process supervision and verification knobs.
type Render struct {
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	HeartbeatSeconds int     `toml:"heartbeat_seconds"`
	FrameTolerance   float64 `toml:"frame_tolerance"`
	FFprobeBinary    string  `toml:"ffprobe_binary"`
}

// Paths contains directory configuration for logs and run state.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for VirtuCast.
//
// Configuration sections by subsystem:
//   - UE5: editor/project locations, asset references, render strategy
//   - Studio: declared anchor ids and camera preset names
//   - Camera: frame rate and resolution
//   - Output: render output root and image format
//   - Render: engine process timeout, heartbeat, verification tolerance
//   - Paths: log and state directories
//   - Logging: log format and level
type Config struct {
	UE5     UE5     `toml:"ue5"`
	Studio  Studio  `toml:"studio"`
	Camera  Camera  `toml:"camera"`
	Output  Output  `toml:"output"`
	Render  Render  `toml:"render"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`

	mapRef      assetref.Ref
	sequenceRef assetref.Ref
	mrqRef      assetref.Ref
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/virtucast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized, and asset references
// parsed. Failures carry the error taxonomy markers: ErrConfig for missing or
// unusable files and keys, ErrAssetResolution for malformed asset references.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "resolve path", "", err)
	}
	if path != "" && !exists {
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "open", fmt.Sprintf("config file not found: %s", resolvedPath), nil)
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfig, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfig, "config", "parse", resolvedPath, err)
		}
	}

	baseDir := ""
	if exists {
		baseDir = filepath.Dir(resolvedPath)
	}
	if err := cfg.normalize(baseDir); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, services.ErrAssetResolution) {
			return nil, "", false, err
		}
		return nil, "", false, services.Wrap(services.ErrConfig, "config", "validate", "", err)
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

	projectPath, err := filepath.Abs(WorkspaceConfigName)
	if err != nil {
		return "", false, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// WorkspaceConfigName is the per-workspace config filename picked up when no
// explicit --config path is given.
const WorkspaceConfigName = "virtucast.toml"

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for audio probing.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Render.FFprobeBinary
}

// RenderTimeout returns the engine process wall-clock budget.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// HeartbeatInterval returns how often a silent render is logged as alive.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Render.HeartbeatSeconds) * time.Second
}

// MapRef returns the parsed map asset reference. Only valid after Validate.
func (c *Config) MapRef() assetref.Ref { return c.mapRef }

// SequenceRef returns the parsed level sequence reference. Only valid after Validate.
func (c *Config) SequenceRef() assetref.Ref { return c.sequenceRef }

// MRQRef returns the parsed Movie Render Queue preset reference. Zero when
// no preset is configured.
func (c *Config) MRQRef() assetref.Ref { return c.mrqRef }

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

// resolvePath expands pathValue, anchoring relative paths at baseDir instead
// of the process working directory. Relative output directories resolve
// against the config file that declared them.
func resolvePath(baseDir, pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if baseDir != "" && !strings.HasPrefix(pathValue, "~") && !filepath.IsAbs(pathValue) {
		pathValue = filepath.Join(baseDir, pathValue)
	}
	return expandPath(pathValue)
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

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
