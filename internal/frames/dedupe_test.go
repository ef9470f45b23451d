package frames

import (
	"context"
	"image"
	"slices"
	"testing"
)

func dedupeConfig() DedupeConfig {
	return DedupeConfig{SimilarityThreshold: 0.96, Proxy: testProxy}
}

func TestDeduplicateCollapsesStaticRun(t *testing.T) {
	// Five near-identical frames followed by one distinct frame: exactly two
	// groups, the first holding frames 2-5 as duplicates.
	source := &stubSource{
		duration: 6,
		frameFor: func(ts float64) image.Image {
			if ts < 5 {
				return flatImage(32, 18, 40)
			}
			return noiseImage(32, 18)
		},
	}

	groups, dupMap, err := Deduplicate(context.Background(), source, []float64{0, 1, 2, 3, 4, 5}, dedupeConfig(), nil)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}
	if groups[0].Representative != 0 {
		t.Fatalf("first representative should be 0, got %v", groups[0].Representative)
	}
	if len(groups[0].Duplicates) != 4 {
		t.Fatalf("expected 4 duplicates in first group, got %+v", groups[0].Duplicates)
	}
	for _, dup := range groups[0].Duplicates {
		if dup.Similarity <= 0.96 {
			t.Fatalf("duplicate similarity %v should exceed threshold", dup.Similarity)
		}
	}
	if groups[1].Representative != 5 || len(groups[1].Duplicates) != 0 {
		t.Fatalf("unexpected second group %+v", groups[1])
	}

	for _, ts := range []float64{1, 2, 3, 4} {
		if rep, ok := dupMap[ts]; !ok || rep != 0 {
			t.Fatalf("duplicate map missing %v -> 0: %v", ts, dupMap)
		}
	}
	if _, ok := dupMap[0]; ok {
		t.Fatal("representative must not appear in duplicate map")
	}
	if _, ok := dupMap[5]; ok {
		t.Fatal("distinct frame must not appear in duplicate map")
	}
}

func TestDeduplicateFirstFrameAlwaysRetained(t *testing.T) {
	source := &stubSource{
		duration: 1,
		frameFor: func(float64) image.Image { return flatImage(32, 18, 40) },
	}
	groups, _, err := Deduplicate(context.Background(), source, []float64{0.5}, dedupeConfig(), nil)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if len(groups) != 1 || groups[0].Representative != 0.5 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestDeduplicateFailsOpenOnDecodeError(t *testing.T) {
	source := &stubSource{
		duration: 3,
		frameFor: func(float64) image.Image { return flatImage(32, 18, 40) },
		failAt:   map[float64]bool{1: true},
	}
	groups, dupMap, err := Deduplicate(context.Background(), source, []float64{0, 1, 2}, dedupeConfig(), nil)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	// The undecodable frame is retained as its own representative, and the
	// comparison chain restarts after it.
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups (fail open), got %+v", groups)
	}
	if len(dupMap) != 0 {
		t.Fatalf("expected empty duplicate map, got %v", dupMap)
	}
}

func TestDeduplicateOrdersAndDeduplicatesInput(t *testing.T) {
	source := &stubSource{
		duration: 3,
		frameFor: func(float64) image.Image { return flatImage(32, 18, 40) },
	}
	groups, _, err := Deduplicate(context.Background(), source, []float64{2, 0, 1, 1, 2}, dedupeConfig(), nil)
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if groups[0].Representative != 0 {
		t.Fatalf("expected ascending processing, got %+v", groups)
	}
	total := 0
	for _, g := range groups {
		total += 1 + len(g.Duplicates)
	}
	if total != 3 {
		t.Fatalf("expected 3 unique frames processed, got %d", total)
	}
}

func TestSSIMIdenticalAndDistinct(t *testing.T) {
	flat := flatImage(32, 18, 40)
	same, err := SSIM(flat, flatImage(32, 18, 40))
	if err != nil {
		t.Fatalf("SSIM: %v", err)
	}
	if same < 0.999 {
		t.Fatalf("identical images should score ~1.0, got %v", same)
	}

	distinct, err := SSIM(flat, noiseImage(32, 18))
	if err != nil {
		t.Fatalf("SSIM: %v", err)
	}
	if distinct > 0.6 {
		t.Fatalf("dissimilar images should score low, got %v", distinct)
	}

	if _, err := SSIM(flat, flatImage(16, 16, 40)); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestDedupSorted(t *testing.T) {
	got := DedupSorted([]float64{3, 1, 2, 1, 3})
	if !slices.Equal(got, []float64{1, 2, 3}) {
		t.Fatalf("DedupSorted = %v", got)
	}
}

func TestEnsureCoverage(t *testing.T) {
	got := EnsureCoverage(nil, 90, 30)
	if !slices.Equal(got, []float64{0, 30, 60}) {
		t.Fatalf("empty input coverage = %v", got)
	}

	got = EnsureCoverage([]float64{10, 80}, 100, 30)
	for i := 1; i < len(got); i++ {
		if got[i]-got[i-1] > 30 {
			t.Fatalf("gap %v-%v exceeds 30s in %v", got[i-1], got[i], got)
		}
	}
	if !slices.Contains(got, 10.0) || !slices.Contains(got, 80.0) {
		t.Fatalf("original timestamps lost: %v", got)
	}
}
