package whisperlive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cherrries/WhisperLive/audio"
)

// SessionState is the client-side view of the streaming protocol.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConfiguring
	StateReady
	StateStreaming
	StateClosed
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrSessionActive is returned by Start when the session has already been
// started. A session handles exactly one connection; create a new one per
// capture.
var ErrSessionActive = errors.New("session already started")

// ErrSessionClosed is returned by Start on a session that has already
// terminated. Sessions do not restart.
var ErrSessionClosed = errors.New("session closed")

// sessionConn is the subset of *websocket.Conn the session uses. Tests
// substitute a fake.
type sessionConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithSegmentHandler sets the receiver for inbound segment batches.
func WithSegmentHandler(h SegmentHandler) Option {
	return func(s *Session) { s.onSegments = h }
}

// Session owns one websocket connection to a transcription server and
// drives it from the configuration handshake through steady-state
// audio/transcript exchange to termination.
//
// All inbound frames are dispatched by a single reader goroutine, one
// transition at a time, so the protocol invariants (readiness honored once,
// language resolved once) hold without further coordination.
type Session struct {
	uid    string
	cfg    SessionConfig
	logger *log.Logger

	onSegments SegmentHandler
	events     chan Event

	mu               sync.Mutex
	eventsClosed     bool
	state            SessionState
	conn             sessionConn
	readySeen        bool
	resolvedLanguage string
	backend          string
	framesSent       uint64
}

// NewSession creates an idle session with a freshly generated uid. The
// resolved language starts equal to the configured language; if that is
// empty the first server-side detection fixes it.
func NewSession(cfg SessionConfig, opts ...Option) *Session {
	s := &Session{
		uid:              uuid.NewString(),
		cfg:              cfg,
		logger:           log.Default(),
		events:           make(chan Event, 16),
		state:            StateIdle,
		resolvedLanguage: cfg.Language,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UID returns the client identifier sent with the configuration message.
func (s *Session) UID() string { return s.uid }

// Events returns the status event stream. The channel is closed when the
// session terminates for any reason.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Language returns the resolved language: the configured one, or the
// server-detected one once detection has happened. Empty until resolved.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvedLanguage
}

// Backend returns the server-reported backend name, once ready.
func (s *Session) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

// Start dials the server, sends the configuration message and begins
// dispatching inbound frames. It returns once the handshake frame is on the
// wire; readiness is reported asynchronously via Events.
func (s *Session) Start(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateError {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)

	// Stop may have run while the dial was in flight; the session is
	// already Closed and must stay that way.
	s.mu.Lock()
	stopped := s.state != StateConnecting
	s.mu.Unlock()
	if stopped {
		if conn != nil {
			conn.Close()
		}
		return ErrSessionClosed
	}

	if err != nil {
		s.fail(fmt.Sprintf("connection failed: %v", err))
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	data, err := json.Marshal(newConfigMessage(s.uid, s.cfg))
	if err != nil {
		conn.Close()
		s.fail(fmt.Sprintf("encode config: %v", err))
		return fmt.Errorf("encode config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		s.fail(fmt.Sprintf("send config: %v", err))
		return fmt.Errorf("send config: %w", err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.state = StateConfiguring
	s.mu.Unlock()

	s.logger.Info("session configuring", "uid", s.uid, "endpoint", endpoint, "model", s.cfg.Model)

	go s.readLoop()
	return nil
}

// SendAudio resamples one captured block to 16 kHz and transmits it as a
// single binary frame. Blocks arriving before the server is ready are
// dropped, not queued: for live captioning recency matters more than
// completeness.
func (s *Session) SendAudio(block audio.Block) error {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateStreaming {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.framesSent++
	sent := s.framesSent
	s.mu.Unlock()

	frame := audio.EncodeFloat32LE(audio.ResampleBlock(block))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send audio frame: %w", err)
	}
	if sent%100 == 0 {
		s.logger.Debug("audio frames sent", "count", sent, "bytes", len(frame))
	}
	return nil
}

// Stop terminates the session from any state: it closes the socket if one
// is open and moves to Closed. Safe to call more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateError {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		// Control frames may be written concurrently with SendAudio's data
		// frames; WriteMessage may not.
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		conn.Close()
		// The reader goroutine notices the closed socket and shuts the
		// event channel.
		return nil
	}

	s.closeEvents()
	return nil
}

// fail marks the session errored before the reader goroutine exists. A
// no-op on a session Stop has already closed.
func (s *Session) fail(reason string) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = StateError
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventDisconnected, Message: reason})
	s.closeEvents()
}

func (s *Session) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}

// emit drops the event when the channel is full or already closed; it is
// never allowed to block or panic the caller.
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event dropped, receiver not draining", "kind", ev.Kind.String())
	}
}

func (s *Session) readLoop() {
	defer s.closeEvents()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stopped := s.state == StateClosed
			if !stopped {
				s.state = StateError
			}
			s.mu.Unlock()

			if stopped {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("websocket read failed", "uid", s.uid, "error", err)
			}
			s.emit(Event{Kind: EventDisconnected, Message: err.Error()})
			return
		}

		if terminal := s.handleMessage(data); terminal {
			return
		}
	}
}

// handleMessage applies one inbound frame to the state machine. It returns
// true when the frame terminates the session. Invoked only from the reader
// goroutine, so frames are processed strictly in arrival order.
func (s *Session) handleMessage(data []byte) bool {
	msg, err := parseServerMessage(data)
	if err != nil {
		// Recovered locally: a malformed frame never tears the session down.
		s.logger.Warn("malformed server frame", "uid", s.uid, "error", err)
		s.emit(Event{Kind: EventDiagnostic, Message: err.Error()})
		return false
	}

	if msg.UID != s.uid {
		// A frame for another client on a transiently shared socket.
		s.logger.Warn("frame for foreign uid discarded", "uid", s.uid, "got", msg.UID)
		return false
	}

	if msg.Status != "" {
		return s.handleStatus(msg)
	}

	switch msg.Message {
	case MessageServerReady:
		s.handleReady(msg)
		return false
	case MessageDisconnect:
		s.closeConn(StateClosed)
		s.logger.Info("server initiated disconnect", "uid", s.uid)
		s.emit(Event{Kind: EventDisconnected, Message: "server closed the session"})
		return true
	}

	if msg.Language != "" {
		s.handleLanguage(msg)
	}

	if len(msg.Segments) > 0 {
		s.handleSegments(msg.Segments)
	}

	return false
}

func (s *Session) handleStatus(msg *ServerMessage) bool {
	switch msg.Status {
	case StatusWait, StatusError:
		// The server has no capacity (or rejected the config). Close and
		// tell the orchestrator to stop capture.
		s.closeConn(StateClosed)
		s.logger.Info("server busy", "uid", s.uid, "status", msg.Status, "message", msg.Message)
		s.emit(Event{Kind: EventServerBusy, Message: msg.Message})
		return true
	case StatusWarning:
		s.logger.Warn("server warning", "uid", s.uid, "message", msg.Message)
		return false
	default:
		s.logger.Warn("unknown status", "uid", s.uid, "status", msg.Status)
		return false
	}
}

func (s *Session) handleReady(msg *ServerMessage) {
	s.mu.Lock()
	if s.readySeen || s.state != StateConfiguring {
		s.mu.Unlock()
		return
	}
	s.readySeen = true
	s.state = StateReady
	s.backend = msg.Backend
	s.mu.Unlock()

	s.logger.Info("server ready", "uid", s.uid, "backend", msg.Backend)
	s.emit(Event{Kind: EventReady, Backend: msg.Backend})
}

func (s *Session) handleLanguage(msg *ServerMessage) {
	s.mu.Lock()
	if s.resolvedLanguage != "" {
		// Already resolved; the overlay language must not flip mid-session.
		s.mu.Unlock()
		return
	}
	s.resolvedLanguage = msg.Language
	s.mu.Unlock()

	s.logger.Info("language detected", "uid", s.uid, "language", msg.Language, "prob", msg.LanguageProb)
	s.emit(Event{
		Kind:         EventLanguageDetected,
		Language:     msg.Language,
		LanguageProb: msg.LanguageProb,
	})
}

func (s *Session) handleSegments(segments []Segment) {
	s.mu.Lock()
	if s.state == StateReady {
		s.state = StateStreaming
	}
	forward := s.state == StateStreaming || s.state == StateConfiguring
	handler := s.onSegments
	s.mu.Unlock()

	if forward && handler != nil {
		handler(segments)
	}
}

// closeConn moves the session to the given terminal state and closes the
// socket so the reader unblocks.
func (s *Session) closeConn(state SessionState) {
	s.mu.Lock()
	s.state = state
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
