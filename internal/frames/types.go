package frames

import "sort"

// Candidate is a timestamp that survived the coarse motion pass.
type Candidate struct {
	// Timestamp in seconds from the start of the asset.
	Timestamp float64 `json:"timestamp"`
	// DiffScore is the percentage of proxy pixels that changed against the
	// previously promoted frame. Strategic candidates carry no score.
	DiffScore float64 `json:"diff_score"`
	// Strategic marks candidates injected from scene cuts or transcript
	// boundaries rather than promoted by pixel difference.
	Strategic bool `json:"strategic,omitempty"`
}

// Duplicate records one member of a group judged visually indistinguishable
// from the representative.
type Duplicate struct {
	Timestamp  float64 `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// Group is an equivalence class of time-adjacent near-duplicate frames,
// collapsed to one representative for expensive analysis. Exactly one
// representative exists per group.
type Group struct {
	Representative float64     `json:"representative"`
	Duplicates     []Duplicate `json:"duplicates,omitempty"`
}

// DuplicateMap maps a duplicate timestamp to its group representative.
type DuplicateMap map[float64]float64

// BuildDuplicateMap flattens groups into the duplicate→representative mapping
// the analysis coordinator uses for result copy-out.
func BuildDuplicateMap(groups []Group) DuplicateMap {
	m := make(DuplicateMap)
	for _, group := range groups {
		for _, dup := range group.Duplicates {
			m[dup.Timestamp] = group.Representative
		}
	}
	return m
}

// DedupSorted deduplicates timestamps as a set and returns them ascending.
// Stages always exchange timestamp sets, never multisets.
func DedupSorted(timestamps []float64) []float64 {
	seen := make(map[float64]struct{}, len(timestamps))
	out := make([]float64, 0, len(timestamps))
	for _, ts := range timestamps {
		if _, ok := seen[ts]; ok {
			continue
		}
		seen[ts] = struct{}{}
		out = append(out, ts)
	}
	sort.Float64s(out)
	return out
}

// EnsureCoverage backfills timestamps so no gap exceeds maxGap seconds. Used
// as the minimum-coverage fallback when the motion pass promotes little or
// nothing; an empty Pass 1 result degrades gracefully instead of failing.
func EnsureCoverage(timestamps []float64, duration, maxGap float64) []float64 {
	if maxGap <= 0 || duration <= 0 {
		return DedupSorted(timestamps)
	}
	out := DedupSorted(timestamps)
	filled := make([]float64, 0, len(out)+int(duration/maxGap)+1)
	prev := 0.0
	if len(out) == 0 || out[0] > 0 {
		filled = append(filled, 0)
	}
	for _, ts := range out {
		for ts-prev > maxGap {
			prev += maxGap
			filled = append(filled, prev)
		}
		filled = append(filled, ts)
		prev = ts
	}
	for duration-prev > maxGap {
		prev += maxGap
		filled = append(filled, prev)
	}
	return DedupSorted(filled)
}
