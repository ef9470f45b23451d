package scenes

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Detector finds codec-level scene cuts by running ffmpeg's scene filter and
// reading the showinfo timestamps it reports. The result is a sparse set of
// "interesting" timestamps fed to Pass 1 as strategic samples.
type Detector struct {
	ffmpeg string
	// threshold is the scene score a frame must exceed to count as a cut.
	threshold float64

	// runner overrides command execution in tests; returns combined output.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDetector builds a detector using the given ffmpeg binary and scene score
// threshold (0 < threshold < 1; typical 0.4).
func NewDetector(ffmpegBinary string, threshold float64) *Detector {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Detector{ffmpeg: ffmpegBinary, threshold: threshold}
}

// WithRunner sets a custom command runner (for testing).
func (d *Detector) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *Detector {
	d.runner = runner
	return d
}

// Detect returns ascending scene-cut timestamps in seconds. A media file with
// no cuts yields an empty slice, not an error.
func (d *Detector) Detect(ctx context.Context, mediaPath string) ([]float64, error) {
	args := buildDetectArgs(mediaPath, d.threshold)
	output, err := d.run(ctx, d.ffmpeg, args...)
	if err != nil {
		return nil, fmt.Errorf("scene detection: %w", err)
	}
	return parseShowinfoTimestamps(output), nil
}

func (d *Detector) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.runner != nil {
		return d.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// showinfo writes to stderr; the null muxer produces nothing on stdout.
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return combined.Bytes(), nil
}

func buildDetectArgs(mediaPath string, threshold float64) []string {
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(threshold, 'f', -1, 64))
	return []string{
		"-hide_banner",
		"-i", mediaPath,
		"-vf", filter,
		"-f", "null",
		"-",
	}
}
