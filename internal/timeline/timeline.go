// Package timeline turns a validated broadcast script into the cue list a
// render job consumes.
//
// Cues are laid out back to back: each segment starts exactly where the
// previous one ended, offsets are running sums of probed clip durations, and
// the final cue's end is the program length. A timeline can be serialized to
// JSON and rendered later without the script or audio metadata present.
package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"virtucast/internal/config"
	"virtucast/internal/script"
	"virtucast/internal/services"
)

// driftTolerance bounds accumulated floating point error between cue offsets
// and the summed durations. One millisecond is far below a frame at any
// supported rate.
const driftTolerance = 0.001

// frameEpsilon keeps an exact seconds-times-fps product from spilling into an
// extra frame after float accumulation.
const frameEpsilon = 1e-6

// Cue positions one script segment on the program clock.
type Cue struct {
	Index           int     `json:"index"`
	Text            string  `json:"text"`
	Anchor          string  `json:"anchor"`
	Camera          string  `json:"camera"`
	AudioPath       string  `json:"audio_path"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Timeline is the complete cue list for one program.
type Timeline struct {
	Title        string  `json:"title"`
	FrameRate    int     `json:"frame_rate"`
	TotalSeconds float64 `json:"total_seconds"`
	Cues         []Cue   `json:"cues"`
}

// Build converts a script into a timeline, checking every segment against the
// configured studio vocabulary and confirming the referenced audio exists.
// Audio durations must already be filled, either from the manifest or by
// probing.
func Build(s *script.Script, cfg *config.Config) (*Timeline, error) {
	if s == nil || len(s.Segments) == 0 {
		return nil, services.Wrap(services.ErrTimeline, "timeline", "build", "script has no segments", nil)
	}
	if cfg == nil {
		return nil, services.Wrap(services.ErrTimeline, "timeline", "build", "no configuration", nil)
	}

	anchors := nameSet(cfg.Studio.Anchors)
	cameras := nameSet(cfg.Studio.CameraPresets)

	tl := &Timeline{
		Title:     s.DisplayTitle(),
		FrameRate: cfg.Camera.FPS,
		Cues:      make([]Cue, 0, len(s.Segments)),
	}

	var offset float64
	for i, seg := range s.Segments {
		if _, ok := anchors[seg.Anchor]; !ok {
			return nil, segmentError(i, fmt.Sprintf("anchor %q is not declared in studio.anchors", seg.Anchor), nil)
		}
		if _, ok := cameras[seg.Camera]; !ok {
			return nil, segmentError(i, fmt.Sprintf("camera %q is not declared in studio.camera_presets", seg.Camera), nil)
		}
		info, err := os.Stat(seg.Audio.Path)
		if err != nil {
			return nil, segmentError(i, fmt.Sprintf("audio file %s", seg.Audio.Path), err)
		}
		if info.IsDir() {
			return nil, segmentError(i, fmt.Sprintf("audio path %s is a directory", seg.Audio.Path), nil)
		}
		duration := seg.Audio.DurationSeconds
		if duration <= 0 {
			return nil, segmentError(i, fmt.Sprintf("audio duration must be positive, got %v", duration), nil)
		}

		cue := Cue{
			Index:           i,
			Text:            seg.Text,
			Anchor:          seg.Anchor,
			Camera:          seg.Camera,
			AudioPath:       seg.Audio.Path,
			SampleRate:      seg.Audio.SampleRate,
			StartSeconds:    offset,
			EndSeconds:      offset + duration,
			DurationSeconds: duration,
		}
		tl.Cues = append(tl.Cues, cue)
		offset = cue.EndSeconds
	}
	tl.TotalSeconds = offset

	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// Validate checks internal consistency: cues are contiguous, each span
// matches its duration, and the total equals the summed durations within the
// drift budget. Build output always passes; the check has teeth for
// timelines loaded from disk.
func (t *Timeline) Validate() error {
	if t == nil || len(t.Cues) == 0 {
		return services.Wrap(services.ErrTimeline, "timeline", "validate", "timeline has no cues", nil)
	}
	if t.FrameRate <= 0 {
		return services.Wrap(services.ErrTimeline, "timeline", "validate", fmt.Sprintf("frame rate must be positive, got %d", t.FrameRate), nil)
	}

	var sum float64
	previousEnd := 0.0
	for i, cue := range t.Cues {
		if cue.DurationSeconds <= 0 {
			return segmentError(i, fmt.Sprintf("duration must be positive, got %v", cue.DurationSeconds), nil)
		}
		if math.Abs(cue.StartSeconds-previousEnd) > driftTolerance {
			return segmentError(i, fmt.Sprintf("starts at %.6fs but previous cue ends at %.6fs", cue.StartSeconds, previousEnd), nil)
		}
		if math.Abs((cue.EndSeconds-cue.StartSeconds)-cue.DurationSeconds) > driftTolerance {
			return segmentError(i, fmt.Sprintf("span %.6fs does not match duration %.6fs", cue.EndSeconds-cue.StartSeconds, cue.DurationSeconds), nil)
		}
		previousEnd = cue.EndSeconds
		sum += cue.DurationSeconds
	}
	if math.Abs(t.TotalSeconds-previousEnd) > driftTolerance {
		return services.Wrap(services.ErrTimeline, "timeline", "validate",
			fmt.Sprintf("total %.6fs does not match final cue end %.6fs", t.TotalSeconds, previousEnd), nil)
	}
	if drift := math.Abs(t.TotalSeconds - sum); drift > driftTolerance {
		return services.Wrap(services.ErrTimeline, "timeline", "validate",
			fmt.Sprintf("offset drift %.6fs exceeds the %.0fms budget", drift, driftTolerance*1000), nil)
	}
	return nil
}

// ExpectedFrames is the frame count a complete render of this timeline
// produces. Partial trailing frames round up because the engine emits the
// frame containing the final instant.
func (t *Timeline) ExpectedFrames() int {
	if t == nil || t.TotalSeconds <= 0 || t.FrameRate <= 0 {
		return 0
	}
	return int(math.Ceil(t.TotalSeconds*float64(t.FrameRate) - frameEpsilon))
}

// WriteFile serializes the timeline as indented JSON, creating parent
// directories as needed.
func (t *Timeline) WriteFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTimeline, "timeline", "write", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrTimeline, "timeline", "write", path, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrTimeline, "timeline", "write", path, err)
	}
	return nil
}

// ReadFile loads a previously written timeline and validates it before
// returning. Hand-edited files with inconsistent offsets are rejected here
// rather than surfacing as a bad render.
func ReadFile(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTimeline, "timeline", "read", path, err)
	}
	var tl Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, services.Wrap(services.ErrTimeline, "timeline", "read", path, err)
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return &tl, nil
}

func segmentError(index int, message string, err error) error {
	return services.Wrap(services.ErrTimeline, "timeline", fmt.Sprintf("segment %d", index), message, err)
}

func nameSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
