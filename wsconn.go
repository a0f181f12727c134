package whisperlive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cherrries/WhisperLive/audio"
	"github.com/cherrries/WhisperLive/providers"
)

// clientConn is one accepted client on the development server. The reader
// goroutine bridges inbound float32 frames to the backend; the writer
// goroutine forwards backend results as segment batches.
type clientConn struct {
	conn    *websocket.Conn
	logger  *log.Logger
	session providers.Session
	uid     string

	writeMu sync.Mutex

	clockMu sync.Mutex
	// streamed is how much audio the client has sent, in seconds. Segment
	// timestamps are synthesized from it.
	streamed   float64
	segmentEnd float64

	wg sync.WaitGroup
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	cfg, err := readConfig(conn)
	if err != nil {
		s.logger.Error("config handshake failed", "error", err)
		conn.Close()
		return
	}

	client := &clientConn{
		conn:   conn,
		logger: s.logger.With("uid", cfg.UID),
		uid:    cfg.UID,
	}

	if !s.tryAcquire(cfg.MaxClients) {
		client.logger.Info("server full, turning client away")
		client.writeJSON(ServerMessage{
			UID:     cfg.UID,
			Status:  StatusWait,
			Message: "2 minutes",
		})
		conn.Close()
		return
	}
	defer s.release()

	language := s.detectLanguage
	if cfg.Language != nil && *cfg.Language != "" {
		language = *cfg.Language
	}

	session, err := s.provider.NewSession(r.Context(), providers.SessionConfig{
		SampleRate:     audio.TargetSampleRate,
		LanguageCode:   language,
		InterimResults: true,
	})
	if err != nil {
		client.logger.Error("failed to create backend session", "backend", s.provider.Name(), "error", err)
		client.writeJSON(ServerMessage{
			UID:     cfg.UID,
			Status:  StatusError,
			Message: fmt.Sprintf("backend unavailable: %v", err),
		})
		conn.Close()
		return
	}
	client.session = session

	client.writeJSON(ServerMessage{
		UID:     cfg.UID,
		Message: MessageServerReady,
		Backend: s.provider.Name(),
	})

	if cfg.Language == nil {
		client.writeJSON(ServerMessage{
			UID:          cfg.UID,
			Language:     s.detectLanguage,
			LanguageProb: s.detectProb,
		})
	}

	maxTime := s.maxConnTime
	if cfg.MaxConnectionTime > 0 {
		maxTime = time.Duration(cfg.MaxConnectionTime) * time.Second
	}
	overtime := time.AfterFunc(maxTime, func() {
		client.logger.Info("session overtime, disconnecting")
		client.writeJSON(ServerMessage{UID: cfg.UID, Message: MessageDisconnect})
		conn.Close()
	})
	defer overtime.Stop()

	client.run()
}

// readConfig reads and validates the mandatory first frame.
func readConfig(conn *websocket.Conn) (*configMessage, error) {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.TextMessage {
		return nil, errors.New("first frame must be the config message")
	}

	var cfg configMessage
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config message: %w", err)
	}
	if cfg.UID == "" {
		return nil, errors.New("config message missing uid")
	}
	return &cfg, nil
}

func (c *clientConn) run() {
	defer c.conn.Close()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writer()
	}()

	c.reader()
	c.session.Close()
	c.wg.Wait()
}

// reader decodes inbound binary frames and bridges them to the backend as
// 16-bit PCM.
func (c *clientConn) reader() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			c.logger.Warn("unexpected text frame after handshake")
			continue
		}

		samples := audio.DecodeFloat32LE(data)
		c.clockMu.Lock()
		c.streamed += float64(len(samples)) / float64(audio.TargetSampleRate)
		c.clockMu.Unlock()

		if err := c.session.SendAudio(audio.Float32ToPCM16(samples)); err != nil {
			c.logger.Error("backend audio send failed", "error", err)
		}
	}
}

// writer forwards backend results to the client as segment batches with
// timestamps synthesized from the audio clock.
func (c *clientConn) writer() {
	for {
		result, err := c.session.ReceiveTranscription()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			c.logger.Error("backend transcription failed", "error", err)
			return
		}

		c.clockMu.Lock()
		start := c.segmentEnd
		end := c.streamed
		if result.IsFinal {
			c.segmentEnd = end
		}
		c.clockMu.Unlock()

		msg := ServerMessage{
			UID: c.uid,
			Segments: []Segment{{
				Start:     fmt.Sprintf("%.3f", start),
				End:       fmt.Sprintf("%.3f", end),
				Text:      result.Text,
				Completed: result.IsFinal,
			}},
		}
		if err := c.writeJSON(msg); err != nil {
			c.logger.Error("websocket write failed", "error", err)
			return
		}
	}
}

// writeJSON serializes writes; ready/detection frames, segments and the
// overtime disconnect race on the same socket.
func (c *clientConn) writeJSON(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
