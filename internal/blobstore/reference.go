package blobstore

import (
	"fmt"
	"strings"
)

// Backend identifies which store a reference resolves against.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

const s3Scheme = "s3://"

// Reference is the claim-check handle for one stored payload. It never embeds
// payload bytes; orchestration state carries references only. The two variants
// share one resolution path so callers never branch on backend.
type Reference struct {
	Backend Backend
	// Path is set for local references.
	Path string
	// Bucket and Key are set for remote references.
	Bucket string
	Key    string
}

// NewLocal builds a reference to a payload on the worker's disk.
func NewLocal(path string) Reference {
	return Reference{Backend: BackendLocal, Path: path}
}

// NewS3 builds a reference to a payload in an object store.
func NewS3(bucket, key string) Reference {
	return Reference{Backend: BackendS3, Bucket: bucket, Key: key}
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Path == "" && r.Bucket == "" && r.Key == ""
}

// String renders the wire form: "s3://bucket/key" for remote references and a
// bare filesystem path for local ones. The prefix is the only discriminator,
// so parsing stays unambiguous.
func (r Reference) String() string {
	switch r.Backend {
	case BackendS3:
		return s3Scheme + r.Bucket + "/" + r.Key
	default:
		return r.Path
	}
}

// Parse reconstructs a Reference from its wire form.
func Parse(value string) (Reference, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Reference{}, fmt.Errorf("parse reference: empty value")
	}
	if strings.HasPrefix(value, s3Scheme) {
		rest := strings.TrimPrefix(value, s3Scheme)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Reference{}, fmt.Errorf("parse reference: malformed s3 reference %q", value)
		}
		return NewS3(bucket, key), nil
	}
	return NewLocal(value), nil
}
