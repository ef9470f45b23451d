// Package ingest validates submitted media and probes container metadata
// before any expensive pipeline work starts.
package ingest
