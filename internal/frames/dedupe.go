package frames

import (
	"context"
	"image"
	"log/slog"

	"sift/internal/logging"
	"sift/internal/media"
)

// DedupeConfig tunes the similarity pass.
type DedupeConfig struct {
	// SimilarityThreshold: scores strictly above it mark a duplicate.
	SimilarityThreshold float64
	// Proxy is the comparison resolution, matching Pass 1's proxy frames.
	Proxy media.Resolution
}

// Deduplicate is Pass 2: a single linear sweep over candidates in ascending
// timestamp order, comparing each frame against the previous retained one.
// Only adjacent-in-time comparisons matter for collapsing visually static
// stretches, so this is O(n) similarity computations, not O(n²).
//
// A failed decode or comparison fails open: the frame is retained as a new
// representative rather than silently dropped, trading extra analysis cost
// for zero content loss.
func Deduplicate(ctx context.Context, source media.Source, timestamps []float64, cfg DedupeConfig, logger *slog.Logger) ([]Group, DuplicateMap, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ordered := DedupSorted(timestamps)
	groups := make([]Group, 0, len(ordered))
	var retained image.Image

	for _, ts := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		frame, err := source.FrameAt(ctx, ts, cfg.Proxy)
		if err != nil {
			logger.Debug("dedupe decode failed, retaining frame",
				logging.Float64("timestamp", ts),
				logging.Error(err),
			)
			groups = append(groups, Group{Representative: ts})
			retained = nil
			continue
		}

		if retained == nil {
			groups = append(groups, Group{Representative: ts})
			retained = frame
			continue
		}

		score, err := SSIM(retained, frame)
		if err != nil {
			logger.Debug("similarity computation failed, retaining frame",
				logging.Float64("timestamp", ts),
				logging.Error(err),
			)
			groups = append(groups, Group{Representative: ts})
			retained = frame
			continue
		}

		if score > cfg.SimilarityThreshold {
			last := &groups[len(groups)-1]
			last.Duplicates = append(last.Duplicates, Duplicate{Timestamp: ts, Similarity: score})
			// Retained frame stays: duplicates compare against the group
			// representative's run, not each other.
			continue
		}

		groups = append(groups, Group{Representative: ts})
		retained = frame
	}

	return groups, BuildDuplicateMap(groups), nil
}
