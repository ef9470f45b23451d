package transcribe

import (
	"sort"
	"strings"
)

// Segment is one timed span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the normalized speech-to-text document persisted to the blob
// store and threaded into frame annotation prompts.
type Transcript struct {
	Language   string    `json:"language,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Segments   []Segment `json:"segments"`
}

// Text concatenates all segment text in order.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Boundaries returns the start timestamps of all segments in ascending order.
// These feed the motion pass as strategic candidates: a new sentence often
// coincides with a new on-screen step even when pixels barely move.
func (t Transcript) Boundaries() []float64 {
	out := make([]float64, 0, len(t.Segments))
	seen := make(map[float64]struct{}, len(t.Segments))
	for _, seg := range t.Segments {
		if seg.Start < 0 {
			continue
		}
		if _, ok := seen[seg.Start]; ok {
			continue
		}
		seen[seg.Start] = struct{}{}
		out = append(out, seg.Start)
	}
	sort.Float64s(out)
	return out
}

// ContextAround returns the spoken text overlapping [ts-window, ts+window],
// giving the annotation prompt narration near the frame's moment.
func (t Transcript) ContextAround(ts, window float64) string {
	if window <= 0 {
		window = 5
	}
	lo, hi := ts-window, ts+window
	parts := make([]string, 0, 4)
	for _, seg := range t.Segments {
		if seg.End < lo || seg.Start > hi {
			continue
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
