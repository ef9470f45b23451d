package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource implements Source by shelling out to ffmpeg/ffprobe.
type FFmpegSource struct {
	path    string
	ffmpeg  string
	ffprobe string

	// runner overrides command execution in tests.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)

	cachedDuration float64
	probed         bool
}

// NewFFmpegSource wraps the media file at path.
func NewFFmpegSource(path, ffmpegBinary, ffprobeBinary string) *FFmpegSource {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpegSource{path: path, ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary}
}

// WithRunner sets a custom command runner (for testing).
func (s *FFmpegSource) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *FFmpegSource {
	s.runner = runner
	return s
}

// Path returns the wrapped media locator.
func (s *FFmpegSource) Path() string {
	return s.path
}

func (s *FFmpegSource) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration probes the container once and caches the result.
func (s *FFmpegSource) Duration(ctx context.Context) (float64, error) {
	if s.probed {
		return s.cachedDuration, nil
	}
	out, err := s.run(ctx, s.ffprobe, buildProbeArgs(s.path)...)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	var parsed probeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("probe duration: parse output: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: parse value %q: %w", parsed.Format.Duration, err)
	}
	s.cachedDuration = duration
	s.probed = true
	return duration, nil
}

// FrameJPEG decodes one still to JPEG bytes at the requested resolution.
func (s *FFmpegSource) FrameJPEG(ctx context.Context, timestamp float64, res Resolution) ([]byte, error) {
	out, err := s.run(ctx, s.ffmpeg, buildFrameArgs(s.path, timestamp, res)...)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", timestamp, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decode frame at %.3fs: empty output", timestamp)
	}
	return out, nil
}

// FrameAt decodes one still into an image at the requested resolution.
func (s *FFmpegSource) FrameAt(ctx context.Context, timestamp float64, res Resolution) (image.Image, error) {
	payload, err := s.FrameJPEG(ctx, timestamp, res)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", timestamp, err)
	}
	return img, nil
}

func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_format",
		"-of", "json",
		path,
	}
}

// buildFrameArgs uses input seeking (-ss before -i) so decode cost does not
// grow with the timestamp.
func buildFrameArgs(path string, timestamp float64, res Resolution) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatTimestamp(timestamp),
		"-i", path,
		"-frames:v", "1",
	}
	if res.Width > 0 && res.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", res.Width, res.Height))
	}
	args = append(args,
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)
	return args
}

func formatTimestamp(timestamp float64) string {
	return strconv.FormatFloat(timestamp, 'f', 3, 64)
}
