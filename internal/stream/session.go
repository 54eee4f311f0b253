package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
)

// State represents the lifecycle state of a session
type State int32

const (
	StateInitializing State = iota
	StateActive
	StateSynthesizing
	StateClosing
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateSynthesizing:
		return "synthesizing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one connection's lifecycle: its transport, inbound message
// queue, keepalive timer, and at most one in-flight synthesis task. All
// mutation happens on the session's own tasks; the registry only initiates
// teardown.
type Session struct {
	ID        string
	StartTime time.Time

	transport Transport
	manager   *Manager
	synth     engine.Synthesizer
	logger    *slog.Logger

	state        atomic.Int32
	inbox        *inbox
	lastActivity atomic.Int64 // unix nanoseconds

	// Owned task management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	// At most one synthesis operation runs per session at a time
	synthMu     sync.Mutex
	cancelMu    sync.Mutex
	synthCancel context.CancelFunc

	closeOnce sync.Once
}

func newSession(t Transport, m *Manager) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		transport: t,
		manager:   m,
		synth:     m.synth,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		inbox:     newInbox(),
	}
	s.logger = m.logger.With(slog.String("session_id", s.ID))
	s.state.Store(int32(StateInitializing))
	s.touch()

	return s
}

// start launches the session's owned tasks and moves it to Active
func (s *Session) start() {
	s.wg.Add(2)
	go s.consumeLoop()
	go s.keepaliveLoop()

	s.state.CompareAndSwap(int32(StateInitializing), int32(StateActive))
	s.logger.Info("Session started")
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session has reached Closed: every owned task
// joined and the transport closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Enqueue appends a raw inbound frame to the session's inbox. It never
// blocks; frames enqueued after teardown began are discarded by the
// consumer shutting down.
func (s *Session) Enqueue(frame []byte) {
	s.touch()
	s.manager.metrics.RecordMessageReceived()
	s.inbox.Push(frame)
}

// Close initiates teardown. Idempotent: the first call moves the session
// to Closing, cancels every owned task, and closes the transport; the
// session reaches Closed once all tasks have been joined. Later calls have
// no additional effect.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.logger.Info("Session closing", slog.String("reason", reason))

		s.cancelSynthesis()
		s.cancel()

		// Unblocks the connection read loop
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("Transport close error", slog.String("error", err.Error()))
		}

		go s.finalize()
	})
}

// finalize joins every owned task and completes registry removal
func (s *Session) finalize() {
	s.wg.Wait()
	s.state.Store(int32(StateClosed))
	close(s.done)
	s.manager.forget(s)
}

// touch refreshes the liveness deadline
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// consumeLoop is the single consumer of the inbox. Messages are decoded
// and dispatched strictly in arrival order; synthesis itself runs on its
// own task, serialized by synthMu.
func (s *Session) consumeLoop() {
	defer s.wg.Done()

	for {
		frame, ok := s.inbox.Pop(s.ctx)
		if !ok {
			return
		}
		s.handleFrame(frame)
	}
}

// handleFrame decodes one frame and routes it by message kind. Decode and
// validation failures are answered with an error frame and never close
// the session.
func (s *Session) handleFrame(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		s.manager.metrics.RecordDecodeError()
		s.logger.Warn("Malformed inbound frame", slog.String("error", err.Error()))
		s.sendControl(protocol.Error("Invalid JSON message"))
		return
	}

	switch msg.Type {
	case protocol.TypeSynthesize:
		s.handleSynthesize(msg)
	case protocol.TypeStop:
		s.handleStop()
	case protocol.TypeConfigure:
		// Placeholder capability: accepted, nothing to apply yet
		s.sendControl(protocol.Success("Configuration updated"))
	case protocol.TypePong:
		s.touch()
	default:
		s.logger.Warn("Unknown message type", slog.String("type", msg.Type))
		s.sendControl(protocol.Error("Unknown message type"))
	}
}

// handleSynthesize validates the request and hands it to a synthesis
// task. A request arriving while another synthesis is in flight waits on
// the synthesis mutex and runs after it, never interleaved.
func (s *Session) handleSynthesize(msg *protocol.Message) {
	req, err := protocol.ValidateSynthesize(msg, s.manager.cfg.Bounds)
	if err != nil {
		var ve *protocol.ValidationError
		if errors.As(err, &ve) {
			s.sendControl(protocol.Error(ve.Detail))
		} else {
			s.sendControl(protocol.Error("Invalid synthesize request"))
		}
		return
	}

	s.manager.metrics.RecordSynthesisRequest()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSynthesis(req)
	}()
}

// handleStop cancels any in-flight streaming operation. A stop with
// nothing streaming is acknowledged the same way.
func (s *Session) handleStop() {
	if s.cancelSynthesis() {
		s.manager.metrics.RecordSynthesisStopped()
		s.logger.Info("Streaming stopped by client")
	}
	s.sendControl(protocol.Success("Streaming stopped"))
}

// runSynthesis performs one streaming operation under the synthesis mutex
func (s *Session) runSynthesis(req *protocol.SynthesizeRequest) {
	s.synthMu.Lock()
	defer s.synthMu.Unlock()

	// The session may have begun teardown while this request waited
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateSynthesizing)) {
		return
	}
	defer s.state.CompareAndSwap(int32(StateSynthesizing), int32(StateActive))

	ctx, cancel := context.WithCancel(s.ctx)
	s.setSynthCancel(cancel)
	defer s.clearSynthCancel()
	defer cancel()

	startTime := time.Now()
	err := s.streamAudio(ctx, req)
	switch {
	case err == nil:
		s.manager.metrics.RecordSynthesisComplete(time.Since(startTime).Seconds())
		s.logger.Info("Synthesis stream completed",
			slog.String("voice", req.Voice),
			slog.Float64("speed", req.Speed),
			slog.Duration("duration", time.Since(startTime)),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, errTransportClosed):
		// Cancelled by stop or teardown; the stop handler acknowledges
	default:
		s.manager.metrics.RecordSynthesisFailure()
		s.logger.Error("Synthesis failed", slog.String("error", err.Error()))
		s.sendControl(protocol.Error("Synthesis failed"))
	}
}

func (s *Session) setSynthCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.synthCancel = cancel
	s.cancelMu.Unlock()
}

func (s *Session) clearSynthCancel() {
	s.cancelMu.Lock()
	s.synthCancel = nil
	s.cancelMu.Unlock()
}

// cancelSynthesis interrupts the in-flight streaming operation, if any.
// Reports whether something was actually cancelled.
func (s *Session) cancelSynthesis() bool {
	s.cancelMu.Lock()
	cancel := s.synthCancel
	s.synthCancel = nil
	s.cancelMu.Unlock()

	if cancel != nil {
		cancel()
		return true
	}
	return false
}

// keepaliveLoop emits periodic ping frames and enforces the liveness
// deadline. It never touches handler state; its only session-wide effect
// is initiating teardown on timeout.
func (s *Session) keepaliveLoop() {
	defer s.wg.Done()

	interval := s.manager.cfg.PingInterval
	deadline := interval + s.manager.cfg.PingTimeout

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			if s.idleFor() > deadline {
				s.manager.metrics.RecordKeepaliveTimeout()
				s.logger.Warn("Keepalive timeout", slog.Duration("idle", s.idleFor()))
				s.Close("keepalive timeout")
				return
			}

			if err := s.transport.WriteControl(protocol.Ping()); err != nil {
				s.logger.Warn("Keepalive ping failed", slog.String("error", err.Error()))
				s.Close("transport failure")
				return
			}
		}
	}
}

// sendControl writes a JSON control frame, swallowing failures on a
// session that is already going down
func (s *Session) sendControl(msg protocol.Control) {
	if err := s.transport.WriteControl(msg); err != nil {
		if s.State() < StateClosing {
			s.logger.Warn("Control send failed",
				slog.String("type", msg.Type),
				slog.String("error", err.Error()),
			)
			s.Close("transport failure")
		}
	}
}

// Info returns a monitoring snapshot of the session
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID:    s.ID,
		State:        s.State().String(),
		StartTime:    s.StartTime,
		LastActivity: time.Unix(0, s.lastActivity.Load()),
		Duration:     time.Since(s.StartTime),
		QueuedFrames: s.inbox.Len(),
	}
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	SessionID    string        `json:"session_id"`
	State        string        `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
	Duration     time.Duration `json:"duration"`
	QueuedFrames int           `json:"queued_frames"`
}
