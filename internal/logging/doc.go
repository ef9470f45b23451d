// Package logging wraps log/slog with sift's handler selection and the
// standardized field names used across the daemon.
package logging
