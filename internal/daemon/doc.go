// Package daemon hosts the long-running sift process: it enforces
// single-instance execution, recovers jobs left in-flight by a crash, runs the
// workflow manager, and serves the HTTP control API the CLI talks to.
package daemon
