package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"camfeed/internal/observability/metrics"
)

func testConfig(extra func(*Config)) Config {
	cfg := Config{
		Addr:          "127.0.0.1:0",
		StreamHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		StatsHandler:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		StaticHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	}
	if extra != nil {
		extra(&cfg)
	}
	return cfg
}

func TestNewRequiresHandlers(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error when no handlers are configured")
	}
	if _, err := New(testConfig(func(c *Config) { c.StreamHandler = nil })); err == nil {
		t.Fatal("expected error when stream handler is missing")
	}
	if _, err := New(testConfig(func(c *Config) { c.StatsHandler = nil })); err == nil {
		t.Fatal("expected error when stats handler is missing")
	}
	if _, err := New(testConfig(func(c *Config) { c.StaticHandler = nil })); err == nil {
		t.Fatal("expected error when static handler is missing")
	}
}

func TestRoutesDispatchToConfiguredHandlers(t *testing.T) {
	t.Parallel()

	var streamHit, statsHit, staticHit bool
	cfg := testConfig(func(c *Config) {
		c.StreamHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			streamHit = true
			w.WriteHeader(http.StatusOK)
		})
		c.StatsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			statsHit = true
			w.WriteHeader(http.StatusOK)
		})
		c.StaticHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			staticHit = true
			w.WriteHeader(http.StatusOK)
		})
	})

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, path := range []string{"/stream", "/stats", "/", "/index.html"} {
		rr := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d", path, rr.Code)
		}
	}

	if !streamHit || !statsHit || !staticHit {
		t.Fatalf("expected all three handlers to be hit: stream=%v stats=%v static=%v", streamHit, statsHit, staticHit)
	}
}

func TestCORSHeaderIsAlwaysSet(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, path := range []string{"/stream", "/stats", "/"} {
		rr := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("GET %s: Access-Control-Allow-Origin = %q, want *", path, got)
		}
	}
}

func TestMetricsMiddlewareAcceptsCustomRecorder(t *testing.T) {
	t.Parallel()

	recorder := metrics.New()
	cfg := testConfig(func(c *Config) { c.Metrics = recorder })
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))

	snap := recorder.Snapshot()
	_ = snap // request counters are not part of Snapshot; this only checks the request completes with a custom recorder
}

func TestLoggingMiddlewareLogsRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := testConfig(func(c *Config) { c.Logger = logger })
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if payload["path"] != "/stream" {
		t.Errorf("expected path /stream in log, got %v", payload["path"])
	}
}

func TestHTTPServerExposesConfiguredAddr(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(func(c *Config) { c.Addr = "127.0.0.1:4242" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := srv.HTTPServer().Addr; got != "127.0.0.1:4242" {
		t.Errorf("HTTPServer().Addr = %q, want 127.0.0.1:4242", got)
	}
}
