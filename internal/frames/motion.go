package frames

import (
	"context"
	"image"
	"log/slog"

	"sift/internal/logging"
	"sift/internal/media"
)

// MotionConfig tunes the coarse motion pass.
type MotionConfig struct {
	// SampleInterval is the uniform sampling cadence in seconds.
	SampleInterval float64
	// Proxy is the downscaled comparison resolution; it bounds per-frame cost
	// independent of source resolution.
	Proxy media.Resolution
	// DiffThresholdPct is the percentage of changed pixels required to
	// promote a sample. Resolution-independent, so no retuning per video.
	DiffThresholdPct float64
	// PixelDeltaThreshold is the per-pixel gray delta that counts as changed.
	PixelDeltaThreshold int
	// Cooldown is the minimum spacing in seconds between promotions.
	Cooldown float64
}

// FilterMotion is Pass 1: a fast low-resolution pixel-difference scan over
// uniformly sampled timestamps. It promotes samples that differ materially
// from the last promoted frame, then unions in the caller's strategic
// timestamps (scene cuts, transcript boundaries), deduplicated and sorted.
//
// Decode failures skip the sample; they are logged, never fatal. An empty
// promotion set is not an error — the caller applies the coverage fallback.
func FilterMotion(ctx context.Context, source media.Source, duration float64, strategic []float64, cfg MotionConfig, logger *slog.Logger) ([]Candidate, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = 1.0
	}

	var lastPromoted []uint8
	lastPromotedAt := -cfg.Cooldown // first sample is never cooled down
	promoted := make([]Candidate, 0, 64)
	skipped := 0

	for ts := 0.0; ts < duration; ts += interval {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := source.FrameAt(ctx, ts, cfg.Proxy)
		if err != nil {
			skipped++
			logger.Debug("sample decode failed, skipping",
				logging.Float64("timestamp", ts),
				logging.Error(err),
			)
			continue
		}
		gray := grayPixels(frame)

		if lastPromoted == nil {
			// First decodable sample is always promoted.
			promoted = append(promoted, Candidate{Timestamp: ts, DiffScore: 100})
			lastPromoted = gray
			lastPromotedAt = ts
			continue
		}

		score := diffPercent(lastPromoted, gray, cfg.PixelDeltaThreshold)
		if score > cfg.DiffThresholdPct && ts-lastPromotedAt >= cfg.Cooldown {
			promoted = append(promoted, Candidate{Timestamp: ts, DiffScore: score})
			lastPromoted = gray
			lastPromotedAt = ts
		}
	}

	if skipped > 0 {
		logger.Warn("motion pass skipped undecodable samples", logging.Int("skipped", skipped))
	}

	return mergeStrategic(promoted, strategic), nil
}

// mergeStrategic unions strategic timestamps into the promoted set,
// deduplicating against promotions at identical timestamps.
func mergeStrategic(promoted []Candidate, strategic []float64) []Candidate {
	byTimestamp := make(map[float64]Candidate, len(promoted)+len(strategic))
	for _, c := range promoted {
		byTimestamp[c.Timestamp] = c
	}
	for _, ts := range strategic {
		if _, ok := byTimestamp[ts]; !ok {
			byTimestamp[ts] = Candidate{Timestamp: ts, Strategic: true}
		}
	}
	order := make([]float64, 0, len(byTimestamp))
	for ts := range byTimestamp {
		order = append(order, ts)
	}
	order = DedupSorted(order)
	out := make([]Candidate, 0, len(order))
	for _, ts := range order {
		out = append(out, byTimestamp[ts])
	}
	return out
}

// grayPixels flattens an image into 8-bit luminance values.
func grayPixels(img image.Image) []uint8 {
	bounds := img.Bounds()
	out := make([]uint8, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma from 16-bit channel values.
			luma := (299*r + 587*g + 114*b) / 1000
			out = append(out, uint8(luma>>8))
		}
	}
	return out
}

// diffPercent returns the percentage of pixels whose delta exceeds the
// per-pixel threshold. Mismatched buffer sizes count as full change.
func diffPercent(a, b []uint8, pixelDelta int) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 100
	}
	changed := 0
	for i := range a {
		delta := int(a[i]) - int(b[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > pixelDelta {
			changed++
		}
	}
	return float64(changed) / float64(len(a)) * 100
}
