package stream

import (
	"log/slog"
	"net/http"
	"time"
)

// Timeouts matching §5 of the protocol this handler implements.
const (
	initPollInterval = 100 * time.Millisecond
	initWaitTimeout  = 10 * time.Second
	dequeueTimeout   = 5 * time.Second
)

// DefaultBufferCapacity is the per-client queue depth handed to Register
// when the caller has no reason to override it.
const DefaultBufferCapacity = 64

// Handler serves GET /stream requests against a Connection Manager.
type Handler struct {
	manager *Manager
	log     *slog.Logger

	initPollInterval time.Duration
	initWaitTimeout  time.Duration
	dequeueTimeout   time.Duration
}

// NewHandler builds a stream Handler backed by manager.
func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager:          manager,
		log:              log,
		initPollInterval: initPollInterval,
		initWaitTimeout:  initWaitTimeout,
		dequeueTimeout:   dequeueTimeout,
	}
}

// ServeHTTP implements the Stream Handler protocol (§4.3): register,
// await the cached init segment, then forward chunks until the client
// disconnects or a write fails.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	buf, err := h.manager.Register()
	if err != nil {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	flusher, _ := w.(http.Flusher)
	closed := false
	finish := func() {
		if closed {
			return
		}
		closed = true
		h.manager.Unregister(buf)
	}
	defer finish()

	header := w.Header()
	header.Set("Content-Type", "video/mp4")
	header.Set("Cache-Control", "no-cache, no-store")
	header.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	init, ok := h.awaitInit()
	if !ok {
		h.log.Warn("init segment wait timed out, closing client", "client_id", buf.ID())
		finish()
		return
	}

	if _, err := w.Write(init); err != nil {
		finish()
		return
	}
	if flusher != nil {
		flusher.Flush()
	}

	disconnected := make(chan struct{})
	go h.watchDisconnect(r, disconnected)

	h.forward(w, flusher, buf, disconnected)
	finish()
}

func (h *Handler) awaitInit() ([]byte, bool) {
	deadline := time.Now().Add(h.initWaitTimeout)
	for {
		if seg, ok := h.manager.InitSegment(); ok {
			return seg, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(h.initPollInterval)
	}
}

// watchDisconnect blocks until the client closes the connection, then
// signals disconnected. It runs for the lifetime of the request.
func (h *Handler) watchDisconnect(r *http.Request, disconnected chan<- struct{}) {
	<-r.Context().Done()
	close(disconnected)
}

func (h *Handler) forward(w http.ResponseWriter, flusher http.Flusher, buf *Buffer, disconnected <-chan struct{}) {
	for {
		select {
		case <-disconnected:
			return
		default:
		}

		chunk, status := buf.Pop(h.dequeueTimeout)
		switch status {
		case PopTimeout:
			continue
		case PopClosed:
			return
		case PopChunk:
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
