package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts used across the service.
// WriteTimeout leaves room for the workflow webhook, which can be slow.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
