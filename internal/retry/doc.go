// Package retry provides a small policy-driven retry combinator shared by the
// workflow stage envelope and the collaborator clients.
package retry
