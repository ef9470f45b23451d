package frames

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"sift/internal/media"
)

// stubSource serves synthetic frames keyed by timestamp ranges.
type stubSource struct {
	duration float64
	// frameFor picks the image for a timestamp; nil error paths only.
	frameFor func(ts float64) image.Image
	// failAt marks timestamps whose decode fails.
	failAt map[float64]bool
	// decodes counts FrameAt invocations.
	decodes int
}

func (s *stubSource) Duration(context.Context) (float64, error) {
	return s.duration, nil
}

func (s *stubSource) FrameAt(_ context.Context, ts float64, _ media.Resolution) (image.Image, error) {
	s.decodes++
	if s.failAt[ts] {
		return nil, fmt.Errorf("decode failure at %.2f", ts)
	}
	return s.frameFor(ts), nil
}

func (s *stubSource) FrameJPEG(ctx context.Context, ts float64, res media.Resolution) ([]byte, error) {
	if _, err := s.FrameAt(ctx, ts, res); err != nil {
		return nil, err
	}
	return []byte("jpeg"), nil
}

// flatImage returns a uniform gray image.
func flatImage(w, h int, value uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// patchedImage returns a base image with the top-left patch set to value.
func patchedImage(w, h int, base, value uint8, patchW, patchH int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = base
	}
	for y := 0; y < patchH && y < h; y++ {
		for x := 0; x < patchW && x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

// noiseImage returns a deterministic high-frequency pattern that scores low
// structural similarity against any flat image.
func noiseImage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*31 + y*57) % 256)})
		}
	}
	return img
}
