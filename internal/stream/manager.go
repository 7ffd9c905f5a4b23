package stream

import (
	"errors"
	"sync"
	"sync/atomic"

	"camfeed/internal/observability/metrics"
)

// ErrAtCapacity is returned by Register once MaxClients registered buffers
// are already live.
var ErrAtCapacity = errors.New("stream: at client capacity")

// ManagerStats summarizes the Connection Manager's registry for the stats
// endpoint.
type ManagerStats struct {
	ConnectedClients int
	MaxClients       int
	HasInit          bool
	Clients          map[uint64]Stats
}

// Manager is the Connection Manager (§4.2): it owns every registered
// client buffer, the one-shot init-segment cache, and the broadcast
// fan-out that feeds every buffer from the broadcaster's single reader
// goroutine.
type Manager struct {
	maxClients int
	bufferCap  int

	mu      sync.RWMutex
	clients map[uint64]*Buffer
	nextID  uint64

	initMu  sync.Mutex
	initSeg []byte
	hasInit atomic.Bool

	recorder *metrics.Recorder
}

// NewManager builds a Connection Manager admitting at most maxClients
// concurrent buffers (no limit when maxClients is zero or negative), each
// with room for bufferCap queued chunks.
func NewManager(maxClients, bufferCap int) *Manager {
	return &Manager{
		maxClients: maxClients,
		bufferCap:  bufferCap,
		clients:    make(map[uint64]*Buffer),
		recorder:   metrics.Default(),
	}
}

// SetRecorder overrides the metrics.Recorder used to track connection
// admission, rejection, closure, and drop events. Passing nil falls back to
// metrics.Default().
func (m *Manager) SetRecorder(recorder *metrics.Recorder) {
	if recorder == nil {
		recorder = metrics.Default()
	}
	m.mu.Lock()
	m.recorder = recorder
	m.mu.Unlock()
}

// Register admits a new client, returning its buffer. It fails with
// ErrAtCapacity once maxClients buffers are already registered.
func (m *Manager) Register() (*Buffer, error) {
	m.mu.Lock()

	if m.maxClients > 0 && len(m.clients) >= m.maxClients {
		recorder := m.recorder
		m.mu.Unlock()
		if recorder != nil {
			recorder.ConnectionRejected()
		}
		return nil, ErrAtCapacity
	}

	m.nextID++
	buf := newBuffer(m.nextID, m.bufferCap)
	m.clients[buf.id] = buf
	recorder := m.recorder
	m.mu.Unlock()

	if recorder != nil {
		recorder.ConnectionAdmitted()
	}
	return buf, nil
}

// Unregister removes a client's buffer and closes it. Safe to call more
// than once for the same buffer; only the first call has any effect.
func (m *Manager) Unregister(buf *Buffer) {
	m.mu.Lock()
	_, ok := m.clients[buf.id]
	if ok {
		delete(m.clients, buf.id)
	}
	recorder := m.recorder
	m.mu.Unlock()
	buf.Close()

	if ok && recorder != nil {
		recorder.ConnectionClosed()
		recorder.AddChunksDropped(buf.Stats().ChunksDropped)
	}
}

// Broadcast pushes chunk to every currently registered buffer. It is the
// broadcaster's only entry point into the registry and is the sole
// writer for each buffer it touches.
func (m *Manager) Broadcast(chunk []byte) {
	m.mu.RLock()
	targets := make([]*Buffer, 0, len(m.clients))
	for _, buf := range m.clients {
		targets = append(targets, buf)
	}
	m.mu.RUnlock()

	for _, buf := range targets {
		buf.Push(chunk)
	}
}

// PublishInit stores the init segment the first time it is called; later
// calls are ignored ("first cache wins", I5). Returns true if this call
// was the one that set it.
func (m *Manager) PublishInit(segment []byte) bool {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.hasInit.Load() {
		return false
	}
	m.initSeg = segment
	m.hasInit.Store(true)
	return true
}

// InitSegment returns the cached init segment and whether one has been
// published yet.
func (m *Manager) InitSegment() ([]byte, bool) {
	if !m.hasInit.Load() {
		return nil, false
	}
	m.initMu.Lock()
	defer m.initMu.Unlock()
	return m.initSeg, m.hasInit.Load()
}

// Stats snapshots the registry for the stats endpoint.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make(map[uint64]Stats, len(m.clients))
	for id, buf := range m.clients {
		clients[id] = buf.Stats()
	}
	return ManagerStats{
		ConnectedClients: len(m.clients),
		MaxClients:       m.maxClients,
		HasInit:          m.hasInit.Load(),
		Clients:          clients,
	}
}
