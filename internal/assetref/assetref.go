// Package assetref parses Unreal Engine asset references.
//
// The engine uses two spellings for the same asset: a soft object reference
// carrying the class path, e.g.
//
//	/Script/Engine.World'/Game/Maps/Studio.Studio'
//
// and a bare object path, e.g.
//
//	/Game/Maps/Studio.Studio
//
// Command-line arguments want different projections of these: level sequences
// and render presets are passed as object paths, while the map positional
// argument of a `-game` launch wants the package path (the object path with
// the trailing `.Name` removed).
package assetref

import (
	"fmt"
	"regexp"
	"strings"
)

var quotedObjectPath = regexp.MustCompile(`'(/Game/[^']+)'`)

// Ref is a parsed asset reference.
type Ref struct {
	raw        string
	classPath  string
	objectPath string
}

// Parse accepts either reference spelling and returns the parsed form.
func Parse(raw string) (Ref, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Ref{}, fmt.Errorf("empty asset reference")
	}
	if match := quotedObjectPath.FindStringSubmatch(trimmed); match != nil {
		classPath := ""
		if idx := strings.IndexByte(trimmed, '\''); idx > 0 {
			classPath = strings.TrimSpace(trimmed[:idx])
		}
		return Ref{raw: trimmed, classPath: classPath, objectPath: match[1]}, nil
	}
	if strings.HasPrefix(trimmed, "/Game/") {
		if strings.ContainsAny(trimmed, "' ") {
			return Ref{}, fmt.Errorf("malformed asset reference %q", raw)
		}
		return Ref{raw: trimmed, objectPath: trimmed}, nil
	}
	return Ref{}, fmt.Errorf("asset reference %q is neither a /Game path nor a quoted soft reference", raw)
}

// String returns the reference as originally written.
func (r Ref) String() string { return r.raw }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.objectPath == "" }

// ClassPath returns the `/Script/Module.Class` prefix, or "" for bare paths.
func (r Ref) ClassPath() string { return r.classPath }

// ObjectPath returns the `/Game/...` object path.
func (r Ref) ObjectPath() string { return r.objectPath }

// PackagePath returns the object path truncated at the first dot after the
// final path separator. `/Game/Maps/Studio.Studio` becomes `/Game/Maps/Studio`.
func (r Ref) PackagePath() string {
	slash := strings.LastIndexByte(r.objectPath, '/')
	if slash < 0 {
		return r.objectPath
	}
	if dot := strings.IndexByte(r.objectPath[slash:], '.'); dot >= 0 {
		return r.objectPath[:slash+dot]
	}
	return r.objectPath
}

// Name returns the asset name: the part after the final dot, or the final
// path segment when the object path carries no dot.
func (r Ref) Name() string {
	slash := strings.LastIndexByte(r.objectPath, '/')
	tail := r.objectPath
	if slash >= 0 {
		tail = r.objectPath[slash+1:]
	}
	if dot := strings.IndexByte(tail, '.'); dot >= 0 {
		return tail[dot+1:]
	}
	return tail
}
