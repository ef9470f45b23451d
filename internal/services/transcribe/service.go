package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "sift/internal/language"
	"sift/internal/media"
	"sift/internal/services"
)

// DefaultBinary is the whisper.cpp command line frontend.
const DefaultBinary = "whisper-cli"

// DefaultModel is used when the configuration does not pin one.
const DefaultModel = "base.en"

// Config captures speech-to-text settings.
type Config struct {
	Binary   string
	Model    string
	Language string
}

// Service transcribes the audio track of a video via whisper-cli.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	return &Service{cfg: cfg, ffmpegBinary: ffmpegBinary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractAudio pulls the primary audio stream into a mono 16kHz WAV.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.ffmpegBinary, media.AudioExtractArgs(source, dest)...)
	}
	return media.ExtractAudio(ctx, s.ffmpegBinary, source, dest)
}

// Transcribe extracts audio from a video and runs whisper-cli over it,
// returning the normalized transcript. workDir holds the intermediate WAV
// and the raw whisper JSON output.
func (s *Service) Transcribe(ctx context.Context, source, workDir string) (Transcript, error) {
	var empty Transcript
	if source == "" {
		return empty, services.Wrap(services.ErrValidation, "transcribe", "run", "source path required", nil)
	}
	if workDir == "" {
		return empty, services.Wrap(services.ErrValidation, "transcribe", "run", "work dir required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return empty, fmt.Errorf("transcribe: ensure work dir: %w", err)
	}

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := s.ExtractAudio(ctx, source, wavPath); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcribe", "extract audio", err.Error(), err)
	}

	outputBase := filepath.Join(workDir, "transcript")
	args := s.buildArgs(wavPath, outputBase)
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "transcribe", "whisper", err.Error(), err)
	}

	transcript, err := LoadWhisperJSON(outputBase + ".json")
	if err != nil {
		return empty, fmt.Errorf("transcribe: %w", err)
	}
	return transcript, nil
}

// buildArgs constructs the whisper-cli invocation.
func (s *Service) buildArgs(wavPath, outputBase string) []string {
	model := s.cfg.Model
	if model == "" {
		model = DefaultModel
	}
	args := []string{
		"-m", model,
		"-f", wavPath,
		"-oj",
		"-of", outputBase,
		"-np",
	}
	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// whisperPayload mirrors the whisper.cpp -oj output schema.
type whisperPayload struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// LoadWhisperJSON reads a whisper.cpp JSON file and normalizes it. Offsets
// are milliseconds on the wire; the transcript carries seconds.
func LoadWhisperJSON(jsonPath string) (Transcript, error) {
	var transcript Transcript
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcript, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return transcript, fmt.Errorf("parse whisper json: %w", err)
	}
	transcript.Language = langpkg.ToISO2(payload.Result.Language)
	transcript.Segments = make([]Segment, 0, len(payload.Transcription))
	for _, seg := range payload.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return transcript, nil
}

// HealthCheck verifies the whisper binary is resolvable.
func (s *Service) HealthCheck(_ context.Context) error {
	if s.commandRunner != nil {
		return nil
	}
	if _, err := exec.LookPath(s.cfg.Binary); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "health", "whisper binary not found", err)
	}
	return nil
}
