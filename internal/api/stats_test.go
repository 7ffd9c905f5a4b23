package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"camfeed/internal/broadcaster"
	"camfeed/internal/config"
	"camfeed/internal/ffmpegargs"
	"camfeed/internal/observability/metrics"
	"camfeed/internal/source"
	"camfeed/internal/stream"
)

func TestStatsHandlerShape(t *testing.T) {
	mgr := stream.NewManager(10, 4)
	mgr.PublishInit([]byte("init"))
	b := broadcaster.New(broadcaster.Config{
		TranscoderPath: "ffmpeg",
		Source:         ffmpegargs.Options{Kind: source.File},
	}, mgr, nil)
	cfg := &config.Config{VideoFPS: 30, VideoCRF: 23, AudioBitrate: "128k"}

	h := NewStatsHandler(b, mgr, cfg, source.File, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v (body=%s)", err, rec.Body.String())
	}

	if resp.Broadcaster.State != "STOPPED" {
		t.Errorf("broadcaster.state = %q, want STOPPED before Start", resp.Broadcaster.State)
	}
	if !resp.Connections.InitCached {
		t.Error("expected init_cached=true after PublishInit")
	}
	if resp.Connections.Max != 10 {
		t.Errorf("connections.max = %d, want 10", resp.Connections.Max)
	}
	if resp.Config.FPS != 30 || resp.Config.CRF != 23 {
		t.Errorf("config = %+v", resp.Config)
	}
	if resp.Config.SourceKind != "file" || !resp.Config.CanLoop {
		t.Errorf("expected file source kind with can_loop=true, got %+v", resp.Config)
	}
}

// TestStatsHandlerChunksDroppedSurvivesDisconnect confirms that a client's
// drop count is still reflected in chunks_dropped after it disconnects,
// rather than vanishing along with its buffer.
func TestStatsHandlerChunksDroppedSurvivesDisconnect(t *testing.T) {
	recorder := metrics.New()
	mgr := stream.NewManager(10, 1)
	mgr.SetRecorder(recorder)

	buf, err := mgr.Register()
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// Buffer capacity is 1: the second push without a reader forces a drop.
	buf.Push([]byte("a"))
	buf.Push([]byte("b"))
	if buf.Stats().ChunksDropped == 0 {
		t.Fatal("precondition: expected at least one dropped chunk")
	}

	mgr.Unregister(buf)

	b := broadcaster.New(broadcaster.Config{TranscoderPath: "ffmpeg"}, mgr, nil)
	cfg := &config.Config{VideoFPS: 30}
	h := NewStatsHandler(b, mgr, cfg, source.File, recorder)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Connections.ChunksDropped == 0 {
		t.Error("expected chunks_dropped to still count the disconnected client's drops")
	}
}
