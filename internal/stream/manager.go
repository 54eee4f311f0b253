package stream

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/metrics"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
)

// ErrCapacityExceeded is returned by Admit once the connection cap is
// reached. Admission is rejected, never queued.
var ErrCapacityExceeded = errors.New("maximum connection limit reached")

// Config contains session manager configuration
type Config struct {
	Capacity     int
	PingInterval time.Duration
	PingTimeout  time.Duration
	ChunkSize    int
	Language     string
	Bounds       protocol.Bounds
}

// Manager is the process-wide directory of live sessions. It enforces the
// global connection cap and provides lookup, removal, and broadcast. All
// map mutation is serialized through one exclusive lock.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	cfg     Config
	synth   engine.Synthesizer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewManager creates a session manager backed by the given synthesizer
func NewManager(logger *slog.Logger, m *metrics.Metrics, synth engine.Synthesizer, cfg Config) *Manager {
	if cfg.Capacity < 1 {
		cfg.Capacity = 100
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 20 * time.Second
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.Bounds.MinSpeed <= 0 {
		cfg.Bounds.MinSpeed = 0.5
	}
	if cfg.Bounds.MaxSpeed <= cfg.Bounds.MinSpeed {
		cfg.Bounds.MaxSpeed = 2.0
	}

	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		synth:    synth,
		logger:   logger,
		metrics:  m,
	}
}

// Admit accepts a new connection into the registry. It rejects with
// ErrCapacityExceeded at the cap; otherwise the session is constructed,
// its owned tasks started, and the entry inserted, all under a single
// critical section.
func (m *Manager) Admit(t Transport) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.Capacity {
		m.mu.Unlock()
		m.metrics.RecordAdmissionRejected()
		m.logger.Warn("Admission rejected at capacity", slog.Int("capacity", m.cfg.Capacity))
		return nil, ErrCapacityExceeded
	}

	session := newSession(t, m)
	session.start()
	m.sessions[session.ID] = session
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.RecordSessionCreated()
	m.metrics.SetActiveSessions(count)

	m.logger.Info("Session admitted",
		slog.String("session_id", session.ID),
		slog.Int("active_sessions", count),
	)

	return session, nil
}

// Get retrieves a session by id
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// Remove tears down and deregisters a session. Idempotent; a no-op when
// the id is unknown.
func (m *Manager) Remove(id string) {
	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists {
		return
	}

	session.Close("removed by registry")
}

// forget deletes a session entry once its teardown has completed. Only
// called from a session's finalizer, so the state is already Closed.
func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	_, present := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	count := len(m.sessions)
	m.mu.Unlock()

	if !present {
		return
	}

	m.metrics.RecordSessionClosed(time.Since(s.StartTime).Seconds())
	m.metrics.SetActiveSessions(count)

	m.logger.Info("Session removed",
		slog.String("session_id", s.ID),
		slog.Duration("duration", time.Since(s.StartTime)),
		slog.Int("active_sessions", count),
	)
}

// ActiveCount returns the number of currently registered sessions
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns a monitoring snapshot of all registered sessions
func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

// Broadcast sends a control frame to every registered session. The map is
// never mutated mid-iteration: failed sessions are collected during the
// pass and removed after it completes.
func (m *Manager) Broadcast(msg protocol.Control) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		snapshot = append(snapshot, session)
	}
	m.mu.RUnlock()

	var failed []*Session
	for _, session := range snapshot {
		if err := session.transport.WriteControl(msg); err != nil {
			m.logger.Warn("Broadcast send failed",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			failed = append(failed, session)
		}
	}

	for _, session := range failed {
		session.Close("broadcast send failure")
	}
}

// Stop gracefully closes every session and waits for all of them to reach
// Closed
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		snapshot = append(snapshot, session)
	}
	m.mu.RUnlock()

	for _, session := range snapshot {
		session.Close("service shutdown")
	}

	for _, session := range snapshot {
		<-session.Done()
	}

	m.logger.Info("Session manager stopped", slog.Int("closed_sessions", len(snapshot)))
}
