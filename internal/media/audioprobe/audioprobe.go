// Package audioprobe inspects TTS audio clips with ffprobe.
//
// Script manifests may omit clip durations and sample rates. Before a
// timeline can be built those gaps are filled by probing the files on disk.
// This is the only place the pipeline looks inside audio content; everything
// downstream trusts the numbers recorded here.
package audioprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"virtucast/internal/script"
	"virtucast/internal/services"
)

// Info carries the probed properties of one audio clip.
type Info struct {
	DurationSeconds float64
	SampleRate      int
}

// Probe executes ffprobe against path and extracts the duration and sample
// rate of its first audio stream. The stream duration wins over the container
// duration when both are present.
func Probe(ctx context.Context, binary, path string) (Info, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("audioprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}

	var payload struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			Duration   string `json:"duration"`
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	info := Info{DurationSeconds: parseFloat(payload.Format.Duration)}
	for _, stream := range payload.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if duration := parseFloat(stream.Duration); duration > 0 {
			info.DurationSeconds = duration
		}
		if rate, err := strconv.Atoi(strings.TrimSpace(stream.SampleRate)); err == nil {
			info.SampleRate = rate
		}
		break
	}
	if info.DurationSeconds <= 0 {
		return Info{}, fmt.Errorf("ffprobe reported no audio duration for %s", path)
	}
	return info, nil
}

// FillScript probes every segment whose manifest entry omits the clip
// duration or sample rate and writes the measured values back. Authored
// values win: segments with complete metadata are never probed.
func FillScript(ctx context.Context, binary string, s *script.Script) error {
	if s == nil {
		return nil
	}
	for i := range s.Segments {
		audio := &s.Segments[i].Audio
		if audio.DurationSeconds > 0 && audio.SampleRate > 0 {
			continue
		}
		info, err := Probe(ctx, binary, audio.Path)
		if err != nil {
			return services.Wrap(services.ErrTimeline, "audioprobe", "probe",
				fmt.Sprintf("segment %d", i), err)
		}
		if audio.DurationSeconds <= 0 {
			audio.DurationSeconds = info.DurationSeconds
		}
		if audio.SampleRate <= 0 {
			audio.SampleRate = info.SampleRate
		}
	}
	return nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return parsed
}
