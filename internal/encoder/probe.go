// Package encoder wraps the external subprocess tools used to extract
// metadata and produce derivatives: ffprobe/ffmpeg for video, and a
// Python-interpreter-backed still resizer with an in-process fallback
// for images. The subprocess-invocation shape (exec.CommandContext,
// stdout progress parsing, truncated stderr capture) is carried over
// from the teacher's internal/ffmpeg package.
package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ashgrove/mediavault/internal/apperr"
)

// corruptMarkers are ffprobe/ffmpeg stderr substrings indicating the
// source media itself is unreadable rather than a tool failure (spec
// §4.5 "QuickTime-brand" note and §7 CorruptInput).
var corruptMarkers = []string{
	"invalid data found when processing input",
	"moov atom not found",
	"could not find codec parameters",
	"error splitting the input into nal units",
	"end of file",
}

// ProbeResult is the subset of ffprobe's format/streams output the
// metadata extractor needs (spec §4.5).
type ProbeResult struct {
	DurationMs     int64
	Width          int
	Height         int
	VideoCodec     string
	AudioCodec     string
	FrameRate      float64
	RotationDeg    int
	QuickTimeBrand bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		FormatName string          `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation int `json:"rotation"`
	} `json:"side_data_list"`
}

// VideoTool wraps ffprobe/ffmpeg invocations.
type VideoTool struct {
	FFprobePath string
	FFmpegPath  string
}

// NewVideoTool returns a VideoTool using the given binary paths.
func NewVideoTool(ffprobePath, ffmpegPath string) *VideoTool {
	return &VideoTool{FFprobePath: ffprobePath, FFmpegPath: ffmpegPath}
}

// Probe runs ffprobe over path and extracts the fields the metadata
// extractor normalizes (spec §4.5): duration, dimensions, codecs,
// framerate, and rotation (from side_data_list or the legacy "rotate" tag).
func (v *VideoTool) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, v.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		stderr := stderrTail(err)
		if isCorruptStderr(stderr) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrCorruptInput, stderr)
		}
		return nil, &apperr.EncoderError{ExitCode: exitCode(err), Stderr: stderr}
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", apperr.ErrEncoder, err)
	}

	result := &ProbeResult{QuickTimeBrand: isQuickTimeBrand(parsed.Format.FormatName)}

	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		result.DurationMs = int64(d * 1000)
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec == "" {
				result.VideoCodec = s.CodecName
				result.Width = s.Width
				result.Height = s.Height
				result.FrameRate = parseFrameRate(s.RFrameRate)
				if result.FrameRate == 0 {
					result.FrameRate = parseFrameRate(s.AvgFrameRate)
				}
				result.RotationDeg = extractRotation(s)
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		}
	}

	return result, nil
}

// extractRotation reads the rotation from side_data_list (modern
// ffmpeg) or falls back to the legacy "rotate" tag.
func extractRotation(s ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return normalizeRotation(sd.Rotation)
		}
	}
	if r, ok := s.Tags["rotate"]; ok {
		if n, err := strconv.Atoi(r); err == nil {
			return normalizeRotation(n)
		}
	}
	return 0
}

func normalizeRotation(deg int) int {
	deg = deg % 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}

// isQuickTimeBrand reports whether the probed container is a QuickTime
// family format (mov/mp4/m4a, carrying an ftyp box), used by the
// metadata extractor's corrupt-image-retry-as-video heuristic (spec
// §4.5).
func isQuickTimeBrand(formatName string) bool {
	f := strings.ToLower(formatName)
	return strings.Contains(f, "mov") || strings.Contains(f, "mp4") || strings.Contains(f, "m4a") || strings.Contains(f, "3gp")
}

func isCorruptStderr(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range corruptMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func stderrTail(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		s := string(exitErr.Stderr)
		const maxLen = 64 * 1024
		if len(s) > maxLen {
			s = s[len(s)-maxLen:]
		}
		return s
	}
	return err.Error()
}

// Progress is a parsed ffmpeg -progress pipe:1 line, per spec §4.4 and
// the teacher's key=value stdout parsing.
type Progress struct {
	Frame   int64
	FPS     float64
	Percent float64
	Speed   float64
}

func parseProgressLine(line string, cur *Progress, totalDuration time.Duration, elapsed time.Duration) {
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return
	}
	key, value := line[:idx], line[idx+1:]

	switch key {
	case "frame":
		cur.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		cur.FPS, _ = strconv.ParseFloat(value, 64)
	case "speed":
		if value != "N/A" {
			cur.Speed, _ = strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64)
		}
	case "out_time_us":
		if value != "N/A" && totalDuration > 0 {
			us, _ := strconv.ParseInt(value, 10, 64)
			elapsedUs := time.Duration(us) * time.Microsecond
			cur.Percent = float64(elapsedUs) / float64(totalDuration) * 100
			if cur.Percent > 100 {
				cur.Percent = 100
			}
		}
	}
}
