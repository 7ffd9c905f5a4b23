package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"camfeed/internal/observability/logging"
	"camfeed/internal/observability/metrics"
)

// Config aggregates the dependencies and settings required to construct a
// Server. StreamHandler serves the live fMP4 feed, StatsHandler serves the
// JSON stats endpoint, and StaticHandler serves the public/ directory and
// falls through to index.html for the root path.
//
// Config carries no TLS settings of its own: listening (plain or TLS) is the
// responsibility of internal/serverutil.Run, which is handed the
// *http.Server returned by HTTPServer.
type Config struct {
	Addr          string
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
	StreamHandler http.Handler
	StatsHandler  http.Handler
	StaticHandler http.Handler
}

// Server wraps the configured http.Server alongside its middleware chain.
type Server struct {
	httpServer *http.Server
}

// New wires the stream, stats, and static routes behind a request-id,
// logging, metrics, and CORS middleware chain. The handler fields in cfg are
// required; New returns an error if any is missing.
func New(cfg Config) (*Server, error) {
	if cfg.StreamHandler == nil {
		return nil, errors.New("stream handler is required")
	}
	if cfg.StatsHandler == nil {
		return nil, errors.New("stats handler is required")
	}
	if cfg.StaticHandler == nil {
		return nil, errors.New("static handler is required")
	}

	mux := http.NewServeMux()
	mux.Handle("/stream", cfg.StreamHandler)
	mux.Handle("/stats", cfg.StatsHandler)
	mux.Handle("/", cfg.StaticHandler)

	var handlerChain http.Handler = mux
	handlerChain = corsMiddleware(handlerChain)
	handlerChain = metrics.HTTPMiddleware(cfg.Metrics, handlerChain)
	handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{Logger: cfg.Logger})(handlerChain)
	handlerChain = requestIDMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		// Streaming responses are long-lived by design, so no overall
		// read/write timeout is set here; only header reads are bounded.
		IdleTimeout: 60 * time.Second,
	}

	return &Server{httpServer: httpServer}, nil
}

// HTTPServer exposes the underlying http.Server to internal/serverutil.Run,
// which owns the listen/serve/shutdown lifecycle and optional TLS.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// corsMiddleware sets an unconditional Access-Control-Allow-Origin header so
// a player page served from any origin can attach to /stream.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
