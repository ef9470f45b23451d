// Package frames implements the two-pass frame selection at the core of sift:
// a cheap coarse motion scan (Pass 1) that nominates candidate timestamps,
// followed by a precise structural-similarity sweep (Pass 2) that collapses
// visually static stretches into groups with one representative each. The
// ordering minimizes invocations of the expensive pass, and group duplicates
// later receive copied analysis results instead of independent inference.
package frames
