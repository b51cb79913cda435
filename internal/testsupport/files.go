package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteFileString writes contents to path, creating parent directories.
func WriteFileString(t testing.TB, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteExecutable writes a shell script to path and marks it executable.
// Tests use these as stand-ins for the editor and ffprobe binaries.
func WriteExecutable(t testing.TB, path, script string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteBroadcastScript writes a minimal broadcast manifest into dir, one
// segment per duration, each backed by a stub audio file next to it. All
// segments use the Vivian anchor and the Wide camera preset. It returns the
// manifest path.
func WriteBroadcastScript(t testing.TB, dir string, durations ...float64) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("title: \"Evening Broadcast\"\nsegments:\n")
	for i, duration := range durations {
		clip := fmt.Sprintf("seg_%03d.wav", i)
		WriteFile(t, filepath.Join(dir, clip), 64)
		fmt.Fprintf(&sb, "  - text: \"Segment %d\"\n", i)
		sb.WriteString("    anchor: Vivian\n    camera: Wide\n    audio:\n")
		fmt.Fprintf(&sb, "      path: %s\n", clip)
		fmt.Fprintf(&sb, "      duration_seconds: %g\n", duration)
		sb.WriteString("      sample_rate: 48000\n")
	}

	path := filepath.Join(dir, "broadcast.yaml")
	WriteFileString(t, path, sb.String())
	return path
}
