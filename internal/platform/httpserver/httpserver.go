package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. The write timeout leaves room for a fetch
// trigger that waits on an upstream lookup (connector clients cap at 15s);
// the query endpoints answer well inside it.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
