// Package verify inspects render output to confirm a job actually produced
// what the timeline promised.
//
// The engine exits zero in several situations that still leave the output
// directory empty or short, so the exit code is never trusted on its own.
// Image sequences follow the hook's naming scheme <name>.<frame>.<ext>;
// container renders are a single mp4.
package verify

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"virtucast/internal/services"
)

// frameName matches the per-frame naming scheme, capturing the extension.
// The frame number between the dots keeps lock files and engine logs from
// counting as output.
var frameName = regexp.MustCompile(`\.(\d+)\.([A-Za-z0-9]+)$`)

// Expectation describes what a complete render looks like.
type Expectation struct {
	Format         string
	ExpectedFrames int
	// Tolerance is the accepted fraction of missing frames, absorbing
	// engine frame rounding at sequence boundaries.
	Tolerance float64
}

// Artifact is the result of scanning one output directory.
type Artifact struct {
	Dir        string
	FrameCount int
	Bytes      int64
	Verified   bool
	Reason     string
}

// MinFrames is the verification threshold for exp.
func MinFrames(exp Expectation) int {
	if exp.ExpectedFrames <= 0 {
		return 0
	}
	tolerance := exp.Tolerance
	if tolerance < 0 {
		tolerance = 0
	}
	if tolerance > 1 {
		tolerance = 1
	}
	return int(math.Ceil(float64(exp.ExpectedFrames) * (1 - tolerance)))
}

// Scan reads dir and checks its contents against exp. Too little output is a
// soft failure reported through Artifact; an unreadable directory is a hard
// ErrRenderVerification.
func Scan(dir string, exp Expectation) (Artifact, error) {
	artifact := Artifact{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return artifact, services.Wrap(services.ErrRenderVerification, "verify", "scan", dir, err)
	}

	if isContainerFormat(exp.Format) {
		return scanContainer(dir, entries, exp)
	}
	return scanFrames(dir, entries, exp)
}

func scanFrames(dir string, entries []os.DirEntry, exp Expectation) (Artifact, error) {
	artifact := Artifact{Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := frameName.FindStringSubmatch(entry.Name())
		if match == nil || !sameImageFormat(match[2], exp.Format) {
			continue
		}
		artifact.FrameCount++
		if info, err := entry.Info(); err == nil {
			artifact.Bytes += info.Size()
		}
	}

	minFrames := MinFrames(exp)
	switch {
	case artifact.FrameCount == 0:
		artifact.Reason = fmt.Sprintf("no %s frames found in %s", exp.Format, dir)
	case artifact.FrameCount < minFrames:
		artifact.Reason = fmt.Sprintf("found %d of %d expected frames (minimum %d)",
			artifact.FrameCount, exp.ExpectedFrames, minFrames)
	default:
		artifact.Verified = true
	}
	return artifact, nil
}

func scanContainer(dir string, entries []os.DirEntry, exp Expectation) (Artifact, error) {
	artifact := Artifact{Dir: dir}
	containers := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), "."+exp.Format) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		containers++
		artifact.Bytes += info.Size()
	}

	switch containers {
	case 0:
		artifact.Reason = fmt.Sprintf("no %s container found in %s", exp.Format, dir)
	case 1:
		artifact.Verified = true
	default:
		artifact.Reason = fmt.Sprintf("expected one %s container, found %d", exp.Format, containers)
	}
	return artifact, nil
}

func isContainerFormat(format string) bool {
	return strings.EqualFold(format, "mp4")
}

// sameImageFormat treats jpg and jpeg as one format; everything else must
// match exactly.
func sameImageFormat(ext, format string) bool {
	ext = strings.ToLower(ext)
	format = strings.ToLower(format)
	if ext == format {
		return true
	}
	jpeg := map[string]bool{"jpg": true, "jpeg": true}
	return jpeg[ext] && jpeg[format]
}
