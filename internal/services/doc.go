// Package services holds the shared error taxonomy and context plumbing used
// by sift's external collaborator clients and pipeline stages.
//
// Errors are classified with sentinel markers (transient, validation,
// configuration, overloaded, ...) so the workflow manager can decide between
// retry, immediate failure, and the long-horizon overload regime without
// inspecting error strings.
package services
