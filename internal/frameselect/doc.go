// Package frameselect runs the two-pass frame selection: the coarse motion
// pass promotes visually active timestamps, the similarity pass collapses
// near-duplicate runs into groups, and the surviving representatives are
// uploaded through the claim-check store for annotation.
package frameselect
