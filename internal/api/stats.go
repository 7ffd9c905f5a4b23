// Package api implements the HTTP-facing handlers that sit around the
// core broadcaster/stream subsystems: the stats snapshot and the static
// asset server for the web UI.
package api

import (
	"encoding/json"
	"net/http"

	"camfeed/internal/broadcaster"
	"camfeed/internal/config"
	"camfeed/internal/observability/metrics"
	"camfeed/internal/source"
	"camfeed/internal/stream"
)

type broadcasterStats struct {
	State             string  `json:"state"`
	Running           bool    `json:"running"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	ChunksSent        uint64  `json:"chunks_sent"`
	BytesSent         uint64  `json:"bytes_sent"`
	LifetimeBytesSent uint64  `json:"lifetime_bytes_sent"`
}

type connectionStats struct {
	Live          int  `json:"live"`
	Max           int  `json:"max"`
	ChunksDropped uint64 `json:"chunks_dropped"`
	InitCached    bool `json:"init_cached"`
}

type effectiveConfig struct {
	FPS          int    `json:"fps"`
	CRF          int    `json:"crf"`
	AudioBitrate string `json:"audio_bitrate"`
	SourceKind   string `json:"source_kind"`
	IsLive       bool   `json:"is_live"`
	CanLoop      bool   `json:"can_loop"`
}

type statsResponse struct {
	Broadcaster broadcasterStats `json:"broadcaster"`
	Connections connectionStats  `json:"connections"`
	Config      effectiveConfig  `json:"config"`
}

// StatsHandler serves GET /stats: a JSON snapshot of the broadcaster and
// the Connection Manager, plus a subset of the effective configuration
// (§4.4).
type StatsHandler struct {
	broadcaster *broadcaster.Broadcaster
	manager     *stream.Manager
	cfg         *config.Config
	kind        source.Kind
	recorder    *metrics.Recorder
}

// NewStatsHandler builds a StatsHandler over the process's broadcaster
// and Connection Manager. recorder supplies the cumulative chunks_dropped
// total, which must include clients that have since disconnected; a nil
// recorder falls back to metrics.Default().
func NewStatsHandler(b *broadcaster.Broadcaster, m *stream.Manager, cfg *config.Config, kind source.Kind, recorder *metrics.Recorder) *StatsHandler {
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &StatsHandler{broadcaster: b, manager: m, cfg: cfg, kind: kind, recorder: recorder}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bstats := h.broadcaster.Stats()
	mstats := h.manager.Stats()

	// Currently registered buffers plus the recorder's running total from
	// buffers that have since disconnected: a buffer's drops are folded
	// into the recorder exactly once, by Manager.Unregister, so summing
	// both here would double count only if a client were both still
	// registered and already unregistered, which cannot happen.
	var totalDropped uint64
	for _, c := range mstats.Clients {
		totalDropped += c.ChunksDropped
	}
	totalDropped += h.recorder.ChunksDropped()

	resp := statsResponse{
		Broadcaster: broadcasterStats{
			State:             bstats.State.String(),
			Running:           bstats.Running,
			ElapsedSeconds:    bstats.ElapsedSeconds,
			ChunksSent:        bstats.ChunksSent,
			BytesSent:         bstats.BytesSent,
			LifetimeBytesSent: bstats.LifetimeBytesSent,
		},
		Connections: connectionStats{
			Live:          mstats.ConnectedClients,
			Max:           mstats.MaxClients,
			ChunksDropped: totalDropped,
			InitCached:    mstats.HasInit,
		},
		Config: effectiveConfig{
			FPS:          h.cfg.VideoFPS,
			CRF:          h.cfg.Quality().EffectiveCRF(),
			AudioBitrate: h.cfg.AudioBitrate,
			SourceKind:   h.kind.String(),
			IsLive:       h.kind.IsLive(),
			CanLoop:      h.kind.CanLoop(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}
