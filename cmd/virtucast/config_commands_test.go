package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"virtucast/internal/services"
	"virtucast/internal/testsupport"
)

func TestConfigValidateAndShow(t *testing.T) {
	_, cfgPath := testsupport.NewConfigFile(t)

	out, _, err := runCLI(t, cfgPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, cfgPath)
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "ue5.editor_path")
	requireContains(t, out, "camera.fps")
	requireContains(t, out, "studio.anchors")
	requireContains(t, out, "Vivian")
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "virtucast.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil {
		t.Fatal("expected a second init without --overwrite to fail")
	}
	requireContains(t, err.Error(), "already exists")

	_, _, err = runCLI(t, "", "config", "init", "--path", target, "--overwrite")
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	_, _, err := runCLI(t, missing, "config", "validate")
	if err == nil {
		t.Fatal("expected a missing config to fail")
	}
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("err = %v, want a config error", err)
	}
	if code := services.ExitCode(err); code != 10 {
		t.Fatalf("exit code = %d, want 10", code)
	}
}
