// Package workspace manages per-project working directories.
//
// A workspace is a directory owning its own virtucast.toml plus a marker
// file recording identity, so commands run from anywhere inside it resolve
// the right configuration without a --config flag. Render output, logs, and
// run state all default to subdirectories of the workspace root.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"virtucast/internal/config"
	"virtucast/internal/textutil"
)

const (
	// MarkerName identifies a workspace root.
	MarkerName = ".virtucast_workspace.json"
	// SchemaVersion is written into every marker.
	SchemaVersion = "virtucast.workspace.v1"
)

// ErrNoWorkspace reports that no marker was found walking up from the
// starting directory.
var ErrNoWorkspace = errors.New("no workspace marker found")

// Workspace is a resolved workspace root.
type Workspace struct {
	ID         string
	Root       string
	ConfigPath string
	CreatedAt  time.Time
}

type marker struct {
	Schema        string `json:"schema"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	WorkspaceRoot string `json:"workspace_root"`
	ConfigPath    string `json:"config_path"`
}

// Init creates a new workspace directory under parent. The name becomes the
// directory name, so path separators and reserved characters are rejected
// rather than silently rewritten. The directory must not already exist.
func Init(parent, name string) (*Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("workspace name is required")
	}
	if textutil.SanitizeFileName(name) != name || name != filepath.Base(name) {
		return nil, fmt.Errorf("workspace name %q contains reserved characters", name)
	}

	parentAbs, err := config.ExpandPath(parent)
	if err != nil {
		return nil, fmt.Errorf("resolve parent directory: %w", err)
	}
	if err := os.MkdirAll(parentAbs, 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	root := filepath.Join(parentAbs, name)
	if err := os.Mkdir(root, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("workspace directory already exists: %s", root)
		}
		return nil, fmt.Errorf("create workspace directory: %w", err)
	}

	for _, sub := range []string{"output", "logs", "state"} {
		if err := os.Mkdir(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace subdirectory %s: %w", sub, err)
		}
	}

	configPath := filepath.Join(root, config.WorkspaceConfigName)
	if err := writeWorkspaceConfig(root, configPath); err != nil {
		return nil, err
	}

	ws := &Workspace{
		ID:         uuid.New().String(),
		Root:       root,
		ConfigPath: configPath,
		CreatedAt:  time.Now().UTC(),
	}
	if err := writeMarker(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Open reads the marker in dir and returns the workspace it describes.
func Open(dir string) (*Workspace, error) {
	dirAbs, err := config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dirAbs, MarkerName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoWorkspace
		}
		return nil, fmt.Errorf("read workspace marker: %w", err)
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse workspace marker: %w", err)
	}
	if m.Schema != SchemaVersion {
		return nil, fmt.Errorf("unsupported workspace schema %q (want %s)", m.Schema, SchemaVersion)
	}

	ws := &Workspace{
		ID:         m.WorkspaceID,
		Root:       dirAbs,
		ConfigPath: m.ConfigPath,
	}
	if ws.ConfigPath == "" {
		ws.ConfigPath = filepath.Join(dirAbs, config.WorkspaceConfigName)
	}
	if parsed, parseErr := time.Parse(time.RFC3339, m.CreatedAt); parseErr == nil {
		ws.CreatedAt = parsed
	}
	return ws, nil
}

// Find walks up from start looking for a workspace marker. It returns
// ErrNoWorkspace when the filesystem root is reached without finding one.
func Find(start string) (*Workspace, error) {
	dir, err := config.ExpandPath(start)
	if err != nil {
		return nil, err
	}
	for {
		ws, openErr := Open(dir)
		if openErr == nil {
			return ws, nil
		}
		if !errors.Is(openErr, ErrNoWorkspace) {
			return nil, openErr
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNoWorkspace
		}
		dir = parent
	}
}

func writeMarker(ws *Workspace) error {
	payload := marker{
		Schema:        SchemaVersion,
		WorkspaceID:   ws.ID,
		CreatedAt:     ws.CreatedAt.Format(time.RFC3339),
		WorkspaceRoot: ws.Root,
		ConfigPath:    ws.ConfigPath,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspace marker: %w", err)
	}
	path := filepath.Join(ws.Root, MarkerName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write workspace marker: %w", err)
	}
	return nil
}

// writeWorkspaceConfig renders the sample configuration with output, log,
// and state paths pointed inside the workspace. Engine paths keep their
// sample placeholders; the user edits those once per machine.
func writeWorkspaceConfig(root, path string) error {
	var tree map[string]any
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &tree); err != nil {
		return fmt.Errorf("parse sample config: %w", err)
	}

	setNested(tree, "output", "directory", filepath.Join(root, "output"))
	setNested(tree, "paths", "log_dir", filepath.Join(root, "logs"))
	setNested(tree, "paths", "state_dir", filepath.Join(root, "state"))

	body, err := toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("render workspace config: %w", err)
	}
	header := "# VirtuCast workspace configuration.\n# Point ue5.editor_path and ue5.project_path at your engine install, then\n# run 'virtucast config validate' from inside the workspace.\n\n"
	if err := os.WriteFile(path, append([]byte(header), body...), 0o644); err != nil {
		return fmt.Errorf("write workspace config: %w", err)
	}
	return nil
}

func setNested(tree map[string]any, section, key string, value any) {
	child, ok := tree[section].(map[string]any)
	if !ok {
		child = map[string]any{}
		tree[section] = child
	}
	child[key] = value
}
