// Package script loads and validates broadcast script manifests.
//
// A manifest is a YAML document listing the segments of one broadcast: the
// spoken text, the anchor delivering it, the camera preset framing it, and
// the pre-generated TTS audio clip backing it. The manifest is the single
// input a render run starts from; timeline construction consumes the loaded
// form.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"virtucast/internal/services"
)

// AudioAsset references one TTS clip. Duration and sample rate are optional
// in the manifest; missing values are filled by probing before timeline
// construction.
type AudioAsset struct {
	Path            string  `yaml:"path"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	SampleRate      int     `yaml:"sample_rate"`
}

// Segment is one scripted beat: text spoken by an anchor under a camera
// preset, backed by an audio clip.
type Segment struct {
	Text   string     `yaml:"text"`
	Anchor string     `yaml:"anchor"`
	Camera string     `yaml:"camera"`
	Audio  AudioAsset `yaml:"audio"`
}

// Script is a parsed broadcast manifest.
type Script struct {
	Title    string    `yaml:"title"`
	Segments []Segment `yaml:"segments"`

	// Path is the manifest location on disk, set by Load.
	Path string `yaml:"-"`
}

// Load reads, parses, and statically validates a manifest. Relative audio
// paths are resolved against the manifest's directory. Failures carry the
// timeline error marker since a broken script means no timeline can be built.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTimeline, "script", "read", path, err)
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, services.Wrap(services.ErrTimeline, "script", "parse", path, err)
	}
	s.Path = path

	baseDir := filepath.Dir(path)
	for i := range s.Segments {
		audioPath := strings.TrimSpace(s.Segments[i].Audio.Path)
		if audioPath != "" && !filepath.IsAbs(audioPath) {
			audioPath = filepath.Join(baseDir, audioPath)
		}
		s.Segments[i].Audio.Path = audioPath
	}

	if err := s.validate(); err != nil {
		return nil, services.Wrap(services.ErrTimeline, "script", "validate", "", err)
	}
	return &s, nil
}

func (s *Script) validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("manifest has no segments")
	}
	for i, seg := range s.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			return fmt.Errorf("segment %d: text is empty", i)
		}
		if strings.TrimSpace(seg.Anchor) == "" {
			return fmt.Errorf("segment %d: anchor is empty", i)
		}
		if strings.TrimSpace(seg.Camera) == "" {
			return fmt.Errorf("segment %d: camera is empty", i)
		}
		if seg.Audio.Path == "" {
			return fmt.Errorf("segment %d: audio path is empty", i)
		}
		if seg.Audio.DurationSeconds < 0 {
			return fmt.Errorf("segment %d: audio duration is negative", i)
		}
	}
	return nil
}

// DisplayTitle returns the manifest title, or one derived from the filename
// when the manifest carries none.
func (s *Script) DisplayTitle() string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	return deriveTitle(s.Path)
}

func deriveTitle(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Broadcast"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Broadcast"
	}
	return cases.Title(language.Und).String(title)
}
