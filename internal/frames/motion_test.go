package frames

import (
	"context"
	"image"
	"slices"
	"testing"

	"sift/internal/media"
)

var testProxy = media.Resolution{Width: 32, Height: 18}

func motionConfig() MotionConfig {
	return MotionConfig{
		SampleInterval:      1.0,
		Proxy:               testProxy,
		DiffThresholdPct:    5.0,
		PixelDeltaThreshold: 24,
		Cooldown:            0.5,
	}
}

func timestampsOf(candidates []Candidate) []float64 {
	out := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Timestamp)
	}
	return out
}

func TestFilterMotionPromotesFirstFrameAndMaterialChanges(t *testing.T) {
	// Static until 3s, fully different from 3s on.
	source := &stubSource{
		duration: 6,
		frameFor: func(ts float64) image.Image {
			if ts < 3 {
				return flatImage(32, 18, 40)
			}
			return flatImage(32, 18, 200)
		},
	}

	candidates, err := FilterMotion(context.Background(), source, source.duration, nil, motionConfig(), nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	got := timestampsOf(candidates)
	want := []float64{0, 3}
	if !slices.Equal(got, want) {
		t.Fatalf("promoted %v, want %v", got, want)
	}
	if candidates[1].DiffScore <= 5.0 {
		t.Fatalf("expected material diff score, got %v", candidates[1].DiffScore)
	}
}

func TestFilterMotionCooldownSuppressesRapidChanges(t *testing.T) {
	// Change lands at 0.2s after the initial promotion at 0.0s; the cooldown
	// must suppress it, and the next qualifying sample at >=0.5s promotes.
	cfg := motionConfig()
	cfg.SampleInterval = 0.1

	source := &stubSource{
		duration: 1.0,
		frameFor: func(ts float64) image.Image {
			if ts < 0.15 {
				return flatImage(32, 18, 40)
			}
			return flatImage(32, 18, 200)
		},
	}

	candidates, err := FilterMotion(context.Background(), source, source.duration, nil, cfg, nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	got := timestampsOf(candidates)
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 promotions, got %v", got)
	}
	if got[0] != 0 {
		t.Fatalf("first sample must always be promoted, got %v", got)
	}
	if got[1] < 0.5 {
		t.Fatalf("promotion at %v violates 0.5s cooldown", got[1])
	}
}

func TestFilterMotionIgnoresSubThresholdChanges(t *testing.T) {
	// A 2% pixel patch stays below the 5% promotion threshold.
	source := &stubSource{
		duration: 4,
		frameFor: func(ts float64) image.Image {
			if ts < 2 {
				return flatImage(32, 18, 40)
			}
			return patchedImage(32, 18, 40, 250, 4, 2)
		},
	}

	candidates, err := FilterMotion(context.Background(), source, source.duration, nil, motionConfig(), nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	got := timestampsOf(candidates)
	if !slices.Equal(got, []float64{0}) {
		t.Fatalf("expected only the first frame, got %v", got)
	}
}

func TestFilterMotionUnionsStrategicTimestamps(t *testing.T) {
	source := &stubSource{
		duration: 3,
		frameFor: func(float64) image.Image { return flatImage(32, 18, 40) },
	}

	strategic := []float64{2.5, 0, 1.25, 2.5}
	candidates, err := FilterMotion(context.Background(), source, source.duration, strategic, motionConfig(), nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	got := timestampsOf(candidates)
	want := []float64{0, 1.25, 2.5}
	if !slices.Equal(got, want) {
		t.Fatalf("candidates %v, want %v", got, want)
	}
	// The promoted 0.0 entry wins over the strategic duplicate at the same
	// timestamp; the rest are tagged strategic.
	if candidates[0].Strategic {
		t.Fatal("promoted first frame must not be marked strategic")
	}
	if !candidates[1].Strategic || !candidates[2].Strategic {
		t.Fatalf("expected strategic markers, got %+v", candidates)
	}
}

func TestFilterMotionSkipsDecodeFailures(t *testing.T) {
	source := &stubSource{
		duration: 4,
		frameFor: func(ts float64) image.Image {
			if ts < 2 {
				return flatImage(32, 18, 40)
			}
			return flatImage(32, 18, 200)
		},
		failAt: map[float64]bool{1: true, 2: true},
	}

	candidates, err := FilterMotion(context.Background(), source, source.duration, nil, motionConfig(), nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	got := timestampsOf(candidates)
	// 1s and 2s fail to decode; the change is picked up at 3s instead.
	want := []float64{0, 3}
	if !slices.Equal(got, want) {
		t.Fatalf("candidates %v, want %v", got, want)
	}
}

func TestFilterMotionEmptyResultIsNotAnError(t *testing.T) {
	source := &stubSource{
		duration: 3,
		frameFor: func(float64) image.Image { return flatImage(32, 18, 40) },
		failAt:   map[float64]bool{0: true, 1: true, 2: true},
	}
	candidates, err := FilterMotion(context.Background(), source, source.duration, nil, motionConfig(), nil)
	if err != nil {
		t.Fatalf("FilterMotion: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
}

func TestDiffPercent(t *testing.T) {
	a := []uint8{0, 0, 0, 0}
	b := []uint8{255, 0, 0, 0}
	if got := diffPercent(a, b, 24); got != 25 {
		t.Fatalf("diffPercent = %v, want 25", got)
	}
	if got := diffPercent(a, a, 24); got != 0 {
		t.Fatalf("identical buffers should be 0%%, got %v", got)
	}
	if got := diffPercent(a, []uint8{0}, 24); got != 100 {
		t.Fatalf("mismatched sizes should be 100%%, got %v", got)
	}
}
