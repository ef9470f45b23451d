// Package scenes produces sparse scene-cut timestamps from codec-level scene
// change signals. Cuts seed the coarse motion filter with timestamps that
// uniform sampling alone would miss.
package scenes
