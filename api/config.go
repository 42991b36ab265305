// Package api provides an HTTP server for checking on a running relay:
// liveness, conversation counts and Prometheus metrics.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string
}
