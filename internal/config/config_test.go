package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"virtucast/internal/config"
	"virtucast/internal/services"
)

func writeEngineStubs(t *testing.T, dir string) (string, string) {
	t.Helper()
	editor := filepath.Join(dir, "UnrealEditor")
	if err := os.WriteFile(editor, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write editor stub: %v", err)
	}
	project := filepath.Join(dir, "VirtuCast.uproject")
	if err := os.WriteFile(project, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write project stub: %v", err)
	}
	return editor, project
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "virtucast.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesAndExpands(t *testing.T) {
	tempDir := t.TempDir()
	editor, project := writeEngineStubs(t, tempDir)

	configPath := writeConfig(t, tempDir, `
[ue5]
editor_path = "`+editor+`"
project_path = "`+project+`"
map_asset = "/Script/Engine.World'/Game/Maps/Studio.Studio'"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"

[output]
directory = "renders"
`)

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.UE5.EditorPath != editor {
		t.Fatalf("unexpected editor path: %q", cfg.UE5.EditorPath)
	}
	wantOutput := filepath.Join(tempDir, "renders")
	if cfg.Output.Directory != wantOutput {
		t.Fatalf("expected relative output to resolve against config dir: got %q want %q", cfg.Output.Directory, wantOutput)
	}
	if got := cfg.MapRef().PackagePath(); got != "/Game/Maps/Studio" {
		t.Fatalf("unexpected map package path: %q", got)
	}
	if got := cfg.SequenceRef().ObjectPath(); got != "/Game/Sequences/Broadcast.Broadcast" {
		t.Fatalf("unexpected sequence object path: %q", got)
	}
	if cfg.Camera.FPS != 30 || cfg.Camera.Resolution.Width != 1920 {
		t.Fatalf("unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.UE5.RenderMode != config.RenderModeHook {
		t.Fatalf("expected hook mode default, got %q", cfg.UE5.RenderMode)
	}
	if cfg.Render.TimeoutSeconds != 3600 {
		t.Fatalf("unexpected timeout default: %d", cfg.Render.TimeoutSeconds)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected config marker, got %v", err)
	}
}

func TestLoadMissingRequiredKeyNamesKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VIRTUCAST_EDITOR_PATH", "")
	t.Setenv("VIRTUCAST_PROJECT_PATH", "")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when no config exists")
	}
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected config marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "ue5.editor_path") {
		t.Fatalf("expected error to name ue5.editor_path, got %v", err)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	fileDir := t.TempDir()
	writeEngineStubs(t, fileDir)
	envDir := t.TempDir()
	envEditor, envProject := writeEngineStubs(t, envDir)

	configPath := writeConfig(t, fileDir, `
[ue5]
editor_path = "`+filepath.Join(fileDir, "UnrealEditor")+`"
project_path = "`+filepath.Join(fileDir, "VirtuCast.uproject")+`"
map_asset = "/Game/Maps/Studio.Studio"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"
`)

	t.Setenv("VIRTUCAST_EDITOR_PATH", envEditor)
	t.Setenv("VIRTUCAST_PROJECT_PATH", envProject)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.UE5.EditorPath != envEditor {
		t.Fatalf("expected editor path from env, got %q", cfg.UE5.EditorPath)
	}
	if cfg.UE5.ProjectPath != envProject {
		t.Fatalf("expected project path from env, got %q", cfg.UE5.ProjectPath)
	}
}

func TestLoadRejectsUnknownRenderMode(t *testing.T) {
	tempDir := t.TempDir()
	editor, project := writeEngineStubs(t, tempDir)
	configPath := writeConfig(t, tempDir, `
[ue5]
editor_path = "`+editor+`"
project_path = "`+project+`"
map_asset = "/Game/Maps/Studio.Studio"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"
render_mode = "headless"
`)

	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "ue5.render_mode") {
		t.Fatalf("expected render_mode error, got %v", err)
	}
}

func TestCLIModeRequiresPresetConfiguration(t *testing.T) {
	tempDir := t.TempDir()
	editor, project := writeEngineStubs(t, tempDir)
	base := `
[ue5]
editor_path = "` + editor + `"
project_path = "` + project + `"
map_asset = "/Game/Maps/Studio.Studio"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"
render_mode = "cli"
`

	configPath := writeConfig(t, tempDir, base)
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "ue5.mrq_config_asset") {
		t.Fatalf("expected mrq_config_asset error, got %v", err)
	}

	configPath = writeConfig(t, tempDir, base+`mrq_config_asset = "/Game/Cinematics/MRQ_Default.MRQ_Default"
`)
	_, _, _, err = config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "ue5.preset_output_dir") {
		t.Fatalf("expected preset_output_dir error, got %v", err)
	}
}

func TestMalformedAssetReferenceTagged(t *testing.T) {
	tempDir := t.TempDir()
	editor, project := writeEngineStubs(t, tempDir)
	configPath := writeConfig(t, tempDir, `
[ue5]
editor_path = "`+editor+`"
project_path = "`+project+`"
map_asset = "Maps/Studio"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"
`)

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected error for malformed map asset")
	}
	if !errors.Is(err, services.ErrAssetResolution) {
		t.Fatalf("expected asset resolution marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "ue5.map_asset") {
		t.Fatalf("expected error to name ue5.map_asset, got %v", err)
	}
}

func TestLoadMissingEditorBinary(t *testing.T) {
	tempDir := t.TempDir()
	_, project := writeEngineStubs(t, tempDir)
	configPath := writeConfig(t, tempDir, `
[ue5]
editor_path = "`+filepath.Join(tempDir, "missing-editor")+`"
project_path = "`+project+`"
map_asset = "/Game/Maps/Studio.Studio"
sequence_asset = "/Game/Sequences/Broadcast.Broadcast"
`)

	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected editor existence failure, got %v", err)
	}
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected config marker, got %v", err)
	}
}

func TestCreateSampleDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[ue5]") {
		t.Fatalf("sample config missing ue5 section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.UE5.RenderMode != "hook" {
		t.Fatalf("expected sample render_mode hook, got %q", cfg.UE5.RenderMode)
	}
}
