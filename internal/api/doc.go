// Package api defines the transport-facing job representations shared by the
// daemon's HTTP server and the CLI client, plus a thin read service over the
// queue store.
package api
