// Package metrics aggregates in-memory counters for HTTP requests,
// broadcaster lifecycle events, and Connection Manager activity, exposed
// to the stats endpoint and structured logs.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates counters and gauges for HTTP requests, broadcaster
// cycles, and client connection events. Concurrent writers are
// coordinated via a single RWMutex that guards every counter.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	broadcasterEvents map[string]uint64
	connectionEvents  map[string]uint64
	chunksDropped     uint64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so
// callers can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:      make(map[requestLabel]uint64),
		requestDuration:   make(map[requestLabel]time.Duration),
		broadcasterEvents: make(map[string]uint64),
		connectionEvents:  make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require a custom Recorder.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals
// for request count and cumulative duration by HTTP method, normalized
// path, and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// BroadcasterCycleStarted records that the supervisor spawned a new
// transcoder child.
func (r *Recorder) BroadcasterCycleStarted() {
	r.incrementEvent(r.broadcasterEvents, "cycle_started")
}

// BroadcasterCycleEnded records that a transcoder cycle exited, tagging
// whether it ran long enough to reset the restart backoff.
func (r *Recorder) BroadcasterCycleEnded(healthy bool) {
	if healthy {
		r.incrementEvent(r.broadcasterEvents, "cycle_healthy")
		return
	}
	r.incrementEvent(r.broadcasterEvents, "cycle_failed")
}

// ConnectionAdmitted records a successful client registration.
func (r *Recorder) ConnectionAdmitted() {
	r.incrementEvent(r.connectionEvents, "admitted")
}

// ConnectionRejected records a registration rejected at capacity.
func (r *Recorder) ConnectionRejected() {
	r.incrementEvent(r.connectionEvents, "rejected")
}

// ConnectionClosed records a client buffer being unregistered.
func (r *Recorder) ConnectionClosed() {
	r.incrementEvent(r.connectionEvents, "closed")
}

// AddChunksDropped accumulates the ring-buffer drop counter across every
// client buffer.
func (r *Recorder) AddChunksDropped(n uint64) {
	r.mu.Lock()
	r.chunksDropped += n
	r.mu.Unlock()
}

// ChunksDropped returns the cumulative drop count across all clients.
func (r *Recorder) ChunksDropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunksDropped
}

func (r *Recorder) incrementEvent(m map[string]uint64, event string) {
	r.mu.Lock()
	m[event]++
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of every counter, keyed by a
// human-readable name, for logging or ad hoc inspection.
func (r *Recorder) Snapshot() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]uint64, len(r.broadcasterEvents)+len(r.connectionEvents)+1)
	for k, v := range r.broadcasterEvents {
		out["broadcaster_"+k] = v
	}
	for k, v := range r.connectionEvents {
		out["connection_"+k] = v
	}
	out["chunks_dropped"] = r.chunksDropped
	return out
}

// normalizePath collapses a request path for use as a metrics label,
// stripping query strings and trailing slashes beyond the root.
func normalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}
