package frames

import (
	"fmt"
	"image"
)

// Standard SSIM stabilization constants for 8-bit dynamic range.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// SSIM computes a global structural-similarity score between two images of
// identical dimensions. 1.0 means structurally identical. A global (single
// window) score is enough here: Pass 2 only needs to rank adjacent frames of
// the same proxy resolution, not localize distortion.
func SSIM(a, b image.Image) (float64, error) {
	boundsA, boundsB := a.Bounds(), b.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return 0, fmt.Errorf("ssim: dimension mismatch %v vs %v", boundsA.Size(), boundsB.Size())
	}
	pixelsA := grayPixels(a)
	pixelsB := grayPixels(b)
	if len(pixelsA) == 0 {
		return 0, fmt.Errorf("ssim: empty image")
	}

	n := float64(len(pixelsA))
	var sumA, sumB float64
	for i := range pixelsA {
		sumA += float64(pixelsA[i])
		sumB += float64(pixelsB[i])
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, covar float64
	for i := range pixelsA {
		da := float64(pixelsA[i]) - meanA
		db := float64(pixelsB[i]) - meanB
		varA += da * da
		varB += db * db
		covar += da * db
	}
	varA /= n
	varB /= n
	covar /= n

	numerator := (2*meanA*meanB + ssimC1) * (2*covar + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return numerator / denominator, nil
}
