package media

import (
	"context"
	"image"
)

// Resolution is a target decode size. Pass the proxy resolution for the
// filtering passes so per-frame cost stays bounded regardless of source size.
type Resolution struct {
	Width  int
	Height int
}

// Source wraps one media asset: it reports duration and produces decoded
// stills at arbitrary timestamps. The decode primitive is external (ffmpeg),
// but this contract is load-bearing for every selection pass above it.
type Source interface {
	// Duration returns the asset length in seconds.
	Duration(ctx context.Context) (float64, error)
	// FrameAt decodes the still nearest to timestamp, scaled to res.
	FrameAt(ctx context.Context, timestamp float64, res Resolution) (image.Image, error)
	// FrameJPEG returns the still as encoded JPEG bytes, scaled to res.
	FrameJPEG(ctx context.Context, timestamp float64, res Resolution) ([]byte, error)
}
