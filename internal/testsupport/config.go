package testsupport

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"virtucast/internal/config"
)

// EditorStubOK is the default editor stand-in: it accepts any arguments and
// exits cleanly without writing frames.
const EditorStubOK = "#!/bin/sh\nexit 0\n"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string

	renderMode      string
	mapAsset        string
	sequenceAsset   string
	mrqAsset        string
	presetOutputDir string
	renderScript    string
	outputFormat    string
	timeoutSeconds  int
	frameTolerance  float64
	anchors         []string
	cameras         []string
	editorScript    string
}

// NewConfig produces a validated config backed by unique temp directories
// and a stub editor binary. Settings are composed as TOML and run through
// config.Load so the result matches what the CLI would see, parsed asset
// references included.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	cfg, _ := NewConfigFile(t, opts...)
	return cfg
}

// NewConfigFile is NewConfig plus the path of the TOML file backing it, for
// tests that drive the CLI through --config.
func NewConfigFile(t testing.TB, opts ...ConfigOption) (*config.Config, string) {
	t.Helper()

	base := t.TempDir()
	b := &configBuilder{
		t:              t,
		baseDir:        base,
		renderMode:     config.RenderModeHook,
		mapAsset:       "/Script/Engine.World'/Game/Maps/NewsStudio.NewsStudio'",
		sequenceAsset:  "/Game/Sequences/Broadcast.Broadcast",
		outputFormat:   "png",
		timeoutSeconds: 60,
		frameTolerance: 0.05,
		anchors:        []string{"Vivian"},
		cameras:        []string{"Wide", "Medium", "Close"},
		editorScript:   EditorStubOK,
	}
	for _, opt := range opts {
		opt(b)
	}

	editorPath := filepath.Join(base, "bin", "UnrealEditor")
	WriteExecutable(t, editorPath, b.editorScript)
	projectPath := filepath.Join(base, "project", "VirtuCast.uproject")
	WriteFileString(t, projectPath, "{\"EngineAssociation\": \"5.3\"}\n")

	var sb strings.Builder
	sb.WriteString("[ue5]\n")
	fmt.Fprintf(&sb, "editor_path = %q\n", editorPath)
	fmt.Fprintf(&sb, "project_path = %q\n", projectPath)
	fmt.Fprintf(&sb, "map_asset = %q\n", b.mapAsset)
	fmt.Fprintf(&sb, "sequence_asset = %q\n", b.sequenceAsset)
	fmt.Fprintf(&sb, "render_mode = %q\n", b.renderMode)
	if b.mrqAsset != "" {
		fmt.Fprintf(&sb, "mrq_config_asset = %q\n", b.mrqAsset)
		fmt.Fprintf(&sb, "preset_output_dir = %q\n", b.presetOutputDir)
	}
	if b.renderScript != "" {
		fmt.Fprintf(&sb, "render_script = %q\n", b.renderScript)
	}

	sb.WriteString("\n[studio]\n")
	fmt.Fprintf(&sb, "anchors = %s\n", tomlStrings(b.anchors))
	fmt.Fprintf(&sb, "camera_presets = %s\n", tomlStrings(b.cameras))

	sb.WriteString("\n[camera]\nfps = 30\n\n[camera.resolution]\nwidth = 1920\nheight = 1080\n")

	sb.WriteString("\n[output]\n")
	fmt.Fprintf(&sb, "directory = %q\n", filepath.Join(base, "output"))
	fmt.Fprintf(&sb, "format = %q\n", b.outputFormat)

	sb.WriteString("\n[render]\n")
	fmt.Fprintf(&sb, "timeout_seconds = %d\n", b.timeoutSeconds)
	sb.WriteString("heartbeat_seconds = 1\n")
	fmt.Fprintf(&sb, "frame_tolerance = %g\n", b.frameTolerance)

	sb.WriteString("\n[paths]\n")
	fmt.Fprintf(&sb, "log_dir = %q\n", filepath.Join(base, "logs"))
	fmt.Fprintf(&sb, "state_dir = %q\n", filepath.Join(base, "state"))

	sb.WriteString("\n[logging]\nformat = \"console\"\nlevel = \"error\"\n")

	path := filepath.Join(base, "virtucast.toml")
	WriteFileString(t, path, sb.String())

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	return cfg, path
}

// WithRenderMode sets ue5.render_mode ("hook" or "cli").
func WithRenderMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.renderMode = mode
	}
}

// WithMRQPreset configures a Movie Render Queue preset asset and its output
// directory, arming the CLI strategy.
func WithMRQPreset() ConfigOption {
	return func(b *configBuilder) {
		b.mrqAsset = "/Script/MovieRenderPipelineCore.MoviePipelinePrimaryConfig'/Game/Cinematics/MRQ_Broadcast.MRQ_Broadcast'"
		b.presetOutputDir = filepath.Join(b.baseDir, "preset-output")
	}
}

// WithEditorScript replaces the stub editor body. The stub receives the same
// arguments a real engine launch would.
func WithEditorScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.editorScript = script
	}
}

// WithRenderScriptFile writes body as the in-project render script and
// points ue5.render_script at it.
func WithRenderScriptFile(body string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "Scripts", "virtu_render_queue.py")
		WriteFileString(b.t, path, body)
		b.renderScript = path
	}
}

// WithOutputFormat sets output.format.
func WithOutputFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.outputFormat = format
	}
}

// WithTimeoutSeconds sets the engine wall-clock budget.
func WithTimeoutSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.timeoutSeconds = seconds
	}
}

// WithFrameTolerance sets render.frame_tolerance.
func WithFrameTolerance(tolerance float64) ConfigOption {
	return func(b *configBuilder) {
		b.frameTolerance = tolerance
	}
}

// WithAnchors replaces the declared anchor vocabulary.
func WithAnchors(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.anchors = names
	}
}

// WithCameraPresets replaces the declared camera presets.
func WithCameraPresets(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cameras = names
	}
}

func tomlStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = fmt.Sprintf("%q", value)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
