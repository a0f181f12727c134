// Package whisperlive implements the WhisperLive streaming transcription
// protocol: a websocket client session that streams 16 kHz float32 audio and
// receives incremental transcript segments, and a protocol-compatible server
// for development and testing.
package whisperlive

import (
	"encoding/json"
	"fmt"
)

// Task selects what the server does with the audio.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Control literals carried in the "message" field of server frames.
const (
	MessageServerReady = "SERVER_READY"
	MessageDisconnect  = "DISCONNECT"
)

// Status values carried in the "status" field of server frames.
const (
	StatusWait    = "WAIT"
	StatusError   = "ERROR"
	StatusWarning = "WARNING"
)

// SessionConfig is the client-chosen configuration for one streaming
// session. It is immutable once the session starts.
type SessionConfig struct {
	// Language is the ISO 639-1 code to transcribe in. Empty means the
	// server auto-detects and reports the language back.
	Language string

	// Task is transcribe or translate. Empty defaults to transcribe.
	Task Task

	// Model names the whisper model the server should run.
	Model string

	// UseVAD enables server-side voice activity detection.
	UseVAD bool

	// MaxClients and MaxConnectionTime are forwarded to the server, which
	// uses them to decide WAIT and DISCONNECT behavior.
	MaxClients        int
	MaxConnectionTime int
}

// configMessage is the first frame the client sends after the socket opens.
// A null language asks the server to auto-detect.
type configMessage struct {
	UID               string  `json:"uid"`
	Language          *string `json:"language"`
	Task              string  `json:"task"`
	Model             string  `json:"model"`
	UseVAD            bool    `json:"use_vad"`
	MaxClients        int     `json:"max_clients"`
	MaxConnectionTime int     `json:"max_connection_time"`
}

func newConfigMessage(uid string, cfg SessionConfig) configMessage {
	msg := configMessage{
		UID:               uid,
		Task:              string(cfg.Task),
		Model:             cfg.Model,
		UseVAD:            cfg.UseVAD,
		MaxClients:        cfg.MaxClients,
		MaxConnectionTime: cfg.MaxConnectionTime,
	}
	if msg.Task == "" {
		msg.Task = string(TaskTranscribe)
	}
	if cfg.Language != "" {
		lang := cfg.Language
		msg.Language = &lang
	}
	return msg
}

// Segment is one span of transcribed text. Start and end are seconds from
// the beginning of the stream, serialized as strings on the wire.
type Segment struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Text      string `json:"text"`
	Completed bool   `json:"completed,omitempty"`
}

// ServerMessage is one inbound frame. Exactly which fields are set depends
// on the message kind; all frames carry the uid of the session they belong
// to.
type ServerMessage struct {
	UID          string    `json:"uid"`
	Status       string    `json:"status,omitempty"`
	Message      string    `json:"message,omitempty"`
	Backend      string    `json:"backend,omitempty"`
	Language     string    `json:"language,omitempty"`
	LanguageProb float64   `json:"language_prob,omitempty"`
	Segments     []Segment `json:"segments,omitempty"`
}

func parseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse server message: %w", err)
	}
	return &msg, nil
}
