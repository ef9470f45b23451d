// Package daemonrun boots the full daemon runtime. It is shared by the siftd
// binary and the CLI's foreground start command.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"sift/internal/assemble"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/daemon"
	"sift/internal/extract"
	"sift/internal/frameselect"
	"sift/internal/ingest"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/persist"
	"sift/internal/queue"
	"sift/internal/scenedetect"
	"sift/internal/services/annotate"
	"sift/internal/services/transcribe"
	"sift/internal/workflow"
)

// Run starts the sift daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "siftd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	set, led, err := BuildStages(signalCtx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(set)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("sift daemon shutting down")
	d.Stop()
	return nil
}

// BuildStages wires the six pipeline handlers with their shared collaborators.
// The returned ledger store must be closed by the caller on shutdown.
func BuildStages(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (workflow.StageSet, *ledger.Store, error) {
	blobs, err := blobstore.NewFromConfig(ctx, cfg)
	if err != nil {
		return workflow.StageSet{}, nil, fmt.Errorf("init blob store: %w", err)
	}

	ttl := ledger.DefaultTTL
	if cfg.Workflow.LedgerTTLDays > 0 {
		ttl = time.Duration(cfg.Workflow.LedgerTTLDays) * 24 * time.Hour
	}
	led, err := ledger.Open(filepath.Join(cfg.Paths.WorkDir, "ledger.db"), ttl)
	if err != nil {
		return workflow.StageSet{}, nil, fmt.Errorf("open ledger: %w", err)
	}

	annotator := annotate.NewClient(annotate.Config{
		APIKey:         cfg.Annotation.APIKey,
		BaseURL:        cfg.Annotation.BaseURL,
		Model:          cfg.Annotation.Model,
		TimeoutSeconds: cfg.Annotation.TimeoutSeconds,
	})
	transcriber := transcribe.NewService(transcribe.Config{
		Binary:   cfg.Transcription.Binary,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
	}, cfg.FFmpegBinary())

	set := workflow.StageSet{
		Ingester:      ingest.NewIngester(cfg, store, logger),
		SceneDetector: scenedetect.NewHandler(cfg, store, logger),
		FrameSelector: frameselect.NewSelector(cfg, store, blobs, logger),
		Extractor:     extract.NewExtractor(cfg, store, blobs, led, annotator, transcriber, logger),
		Assembler:     assemble.NewAssembler(cfg, store, blobs, logger),
		Persister:     persist.NewPersister(cfg, store, blobs, led, logger),
	}
	return set, led, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
