package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"sync"

	"github.com/disintegration/imaging"
)

// interpreterCandidates is the auto-discovery order for a Python
// interpreter, per spec §4.4 "process-wide state: Python invocation
// probe result ... lazily initialised, process-lifetime".
var interpreterCandidates = []string{"py", "python3", "python"}

var interpreterProbe struct {
	once sync.Once
	path string // "" if none found
}

func discoverInterpreter() string {
	interpreterProbe.once.Do(func() {
		for _, name := range interpreterCandidates {
			if p, err := exec.LookPath(name); err == nil {
				interpreterProbe.path = p
				return
			}
		}
	})
	return interpreterProbe.path
}

// StillResizer produces JPEG thumbnails for still images. It prefers a
// Python/Pillow helper script (matching real-world deployments that
// already carry a Pillow-based sidecar), falling back to the in-process
// disintegration/imaging decoder when no interpreter is available.
type StillResizer struct {
	ScriptPath string // path to the Pillow-based resize helper, if any
}

// NewStillResizer returns a resizer that will use ScriptPath via a
// discovered Python interpreter when present.
func NewStillResizer(scriptPath string) *StillResizer {
	return &StillResizer{ScriptPath: scriptPath}
}

// Resize writes a JPEG (quality ~85, per spec §6.4) of srcPath scaled so
// its longer edge does not exceed maxHeight, to dstPath.
func (r *StillResizer) Resize(ctx context.Context, srcPath, dstPath string, maxHeight int) error {
	interpreter := discoverInterpreter()
	if interpreter != "" && r.ScriptPath != "" {
		if err := r.resizeViaPython(ctx, interpreter, srcPath, dstPath, maxHeight); err == nil {
			return nil
		}
		// fall through to the in-process path on any script failure
	}
	return r.resizeInProcess(srcPath, dstPath, maxHeight)
}

func (r *StillResizer) resizeViaPython(ctx context.Context, interpreter, srcPath, dstPath string, maxHeight int) error {
	cmd := exec.CommandContext(ctx, interpreter, r.ScriptPath,
		srcPath, dstPath, fmt.Sprintf("%d", maxHeight))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrTail := stderr.String()
		if isCorruptStderr(stderrTail) {
			return fmt.Errorf("corrupt image: %s", stderrTail)
		}
		return fmt.Errorf("resize script failed: %w: %s", err, stderrTail)
	}
	return nil
}

func (r *StillResizer) resizeInProcess(srcPath, dstPath string, maxHeight int) error {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	resized := img
	if h > maxHeight || w > maxHeight {
		if h >= w {
			resized = imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
		} else {
			resized = imaging.Resize(img, maxHeight, 0, imaging.Lanczos)
		}
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, resized, &jpeg.Options{Quality: 85})
}
