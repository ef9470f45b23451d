package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExtractAudio extracts the primary audio stream from a source file.
// The output is a mono 16kHz WAV file suitable for speech-to-text.
func ExtractAudio(ctx context.Context, ffmpegBinary, source, dest string) error {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	args := AudioExtractArgs(source, dest)
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// AudioExtractArgs returns the ffmpeg arguments for the extraction, exposed
// so callers with injected runners can reuse the exact invocation.
func AudioExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
