package encoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/grafov/m3u8"
)

// activeInvocations counts in-flight ffmpeg invocations across every
// VideoTool, for the status reporter's "transcodes.active" field (spec
// §4.10). It lives at package scope rather than on VideoTool since the
// server and discovery driver share a single ffmpeg binary's worth of
// CPU regardless of how many VideoTool values wrap it.
var activeInvocations int64

// ActiveTranscodes returns the number of ffmpeg invocations currently
// running.
func ActiveTranscodes() int {
	return int(atomic.LoadInt64(&activeInvocations))
}

// hwaccel selection is generalized from the teacher's ffmpeg/hwaccel.go
// probe-and-cache pattern, trimmed to the single question this system
// needs answered: is a hardware H.264 encoder available, or do we fall
// back to libx264. VMAF-driven quality search (the teacher's
// SmartShrink) has no equivalent here; see DESIGN.md.
var hwEncoderProbe = struct {
	done    bool
	encoder string
}{}

func detectEncoder(ctx context.Context, ffmpegPath string) string {
	if hwEncoderProbe.done {
		return hwEncoderProbe.encoder
	}

	candidates := []string{"h264_videotoolbox", "h264_nvenc", "h264_qsv", "h264_vaapi"}
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders").Output()
	encoder := "libx264"
	if err == nil {
		listing := string(out)
		for _, c := range candidates {
			if strings.Contains(listing, c) {
				encoder = c
				break
			}
		}
	}

	hwEncoderProbe.done = true
	hwEncoderProbe.encoder = encoder
	return encoder
}

// WebSafeVideo transcodes input to an H.264 yuv420p + AAC MP4 with
// +faststart at CRF 23, per spec §6.4.
func (v *VideoTool) WebSafeVideo(ctx context.Context, inputPath, outputPath string) error {
	encoder := detectEncoder(ctx, v.FFmpegPath)

	args := []string{
		"-i", inputPath,
		"-y",
		"-progress", "pipe:1",
		"-nostats",
		"-c:v", encoder,
		"-pix_fmt", "yuv420p",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}

	return v.run(ctx, args)
}

// HLSRendition is one rung of the fixed HLS ladder: its variant
// subdirectory name, target height and video bitrate.
type HLSRendition struct {
	Name   string // "360p", "720p"
	Height int
	Bitrate string // ffmpeg -b:v value
}

var hlsLadder = []HLSRendition{
	{Name: "360p", Height: 360, Bitrate: "800k"},
	{Name: "720p", Height: 720, Bitrate: "2800k"},
}

// HLSLadder produces the 360p and 720p variant playlists and their
// MPEG-TS segments (2s targets) under outDir/<name>/ (spec §6.4, §4.2
// HLS cache layout). outDir already exists. It does not write the master
// playlist; MasterPlaylist builds that from the returned renditions.
func (v *VideoTool) HLSLadder(ctx context.Context, inputPath, outDir string) ([]HLSRendition, error) {
	encoder := detectEncoder(ctx, v.FFmpegPath)

	for _, r := range hlsLadder {
		variantDir := filepath.Join(outDir, r.Name)
		if err := os.MkdirAll(variantDir, 0755); err != nil {
			return nil, fmt.Errorf("create variant directory: %w", err)
		}

		// Relative filenames plus cmd.Dir = variantDir (runIn) make
		// ffmpeg's hls muxer bake relative segment URIs into the
		// playlist, not the cache's absolute on-disk path.
		args := []string{
			"-i", inputPath,
			"-y",
			"-progress", "pipe:1",
			"-nostats",
			"-vf", fmt.Sprintf("scale=-2:%d", r.Height),
			"-c:v", encoder,
			"-b:v", r.Bitrate,
			"-c:a", "aac",
			"-f", "hls",
			"-hls_time", "2",
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", "segment_%03d.ts",
			"playlist.m3u8",
		}

		if err := v.runIn(ctx, variantDir, args); err != nil {
			return nil, err
		}
	}

	return hlsLadder, nil
}

// MasterPlaylist builds the master manifest referencing each rendition's
// already-written variant playlist, per spec §4.2 "master.m3u8". Segment
// and variant-playlist content are ffmpeg's own HLS muxer output; this
// only stitches together the top-level index.
func MasterPlaylist(renditions []HLSRendition) ([]byte, error) {
	p := m3u8.NewMasterPlaylist()
	for _, r := range renditions {
		bandwidth, err := bitrateToBps(r.Bitrate)
		if err != nil {
			return nil, fmt.Errorf("parse bitrate %q: %w", r.Bitrate, err)
		}
		p.Append(r.Name+"/playlist.m3u8", nil, m3u8.VariantParams{
			Bandwidth:  bandwidth,
			Resolution: fmt.Sprintf("?x%d", r.Height),
		})
	}
	return p.Encode().Bytes(), nil
}

func bitrateToBps(s string) (uint32, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint32(n * mult), nil
}

// Thumbnail extracts a single JPEG frame at 0.5s scaled to height, the
// still representation served for any video request that isn't HLS
// (spec §4.4 "Video still thumbnail", §4.9 step 3).
func (v *VideoTool) Thumbnail(ctx context.Context, inputPath, outputPath string, height int) error {
	args := []string{
		"-ss", "0.5",
		"-i", inputPath,
		"-y",
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		outputPath,
	}
	return v.run(ctx, args)
}

// PreviewDurationSeconds is the clip length baked into the
// "preview.<height>.<secs>s.audio" cache variant label (spec §4.2).
const PreviewDurationSeconds = 3

// Preview produces a short H.264+AAC clip scaled to height, starting at
// the source's beginning, for the cache's "preview" derivative (spec
// §4.2, §6.4). Not reachable from the request orchestrator directly
// (spec §4.9 step 3 routes every non-hls video representation to
// Thumbnail instead); generated opportunistically by the enrichment
// pipeline so a future direct-download surface has it ready.
func (v *VideoTool) Preview(ctx context.Context, inputPath, outputPath string, height int) error {
	encoder := detectEncoder(ctx, v.FFmpegPath)

	args := []string{
		"-i", inputPath,
		"-y",
		"-progress", "pipe:1",
		"-nostats",
		"-t", strconv.Itoa(PreviewDurationSeconds),
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", encoder,
		"-pix_fmt", "yuv420p",
		"-crf", "28",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
	return v.run(ctx, args)
}

func (v *VideoTool) run(ctx context.Context, args []string) error {
	return v.runIn(ctx, "", args)
}

// runIn is run with an explicit working directory, used by HLSLadder so
// ffmpeg's hls muxer writes relative segment URIs into the playlist
// instead of baking in the cache's absolute path.
func (v *VideoTool) runIn(ctx context.Context, dir string, args []string) error {
	atomic.AddInt64(&activeInvocations, 1)
	defer atomic.AddInt64(&activeInvocations, -1)

	cmd := exec.CommandContext(ctx, v.FFmpegPath, args...)
	cmd.Dir = dir
	logger.Debug("ffmpeg command", "args", strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	var stderrTail string
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	doneStdout := make(chan struct{})
	go func() {
		defer close(doneStdout)
		drainStdout(stdout)
	}()

	stderrCh := make(chan string, 1)
	go func() {
		stderrCh <- tailLines(stderrPipe, 64*1024)
	}()

	err = cmd.Wait()
	<-doneStdout
	stderrTail = <-stderrCh

	if err != nil {
		if isCorruptStderr(stderrTail) {
			return fmt.Errorf("%w: %s", apperr.ErrCorruptInput, stderrTail)
		}
		return &apperr.EncoderError{ExitCode: exitCode(err), Stderr: stderrTail}
	}

	return nil
}

// drainStdout consumes ffmpeg's -progress pipe:1 lines, parsing them
// into Progress updates. Callers that need live progress can extend
// this with a channel; for now it only needs to keep the pipe drained
// so ffmpeg does not block on a full stdout buffer.
func drainStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	var cur Progress
	for scanner.Scan() {
		parseProgressLine(scanner.Text(), &cur, 0, 0)
	}
}

// tailLines reads r to completion and returns the trailing maxBytes of
// its output, mirroring the teacher's "last few lines of stderr"
// truncation in transcode.go, generalized to a byte budget per spec
// §4.4.
func tailLines(r io.Reader, maxBytes int) string {
	buf := make([]byte, 0, maxBytes)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > maxBytes {
				buf = buf[len(buf)-maxBytes:]
			}
		}
		if err != nil {
			break
		}
	}
	return string(buf)
}
