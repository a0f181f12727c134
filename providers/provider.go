// Package providers defines the transcription backends the development
// server can bridge audio to. The wire protocol in the root package is
// backend-agnostic; a backend only sees PCM audio in and text results out.
package providers

import (
	"context"
	"time"
)

// Provider creates transcription sessions for streaming speech-to-text.
type Provider interface {
	// Name identifies the backend; it is reported to clients in the
	// SERVER_READY frame.
	Name() string

	// NewSession creates a streaming session with the given configuration.
	NewSession(ctx context.Context, config SessionConfig) (Session, error)
}

// Session handles streaming transcription for a single client connection.
type Session interface {
	// SendAudio sends 16-bit little-endian PCM at the configured sample
	// rate.
	SendAudio(audioData []byte) error

	// ReceiveTranscription blocks until a transcription result is
	// available. Returns io.EOF when the session is closed and no more
	// results will arrive.
	ReceiveTranscription() (TranscriptionResult, error)

	// Close releases the session. Readers and writers must be stopped
	// before calling Close.
	Close() error
}

// SessionConfig holds backend-agnostic session parameters.
type SessionConfig struct {
	// SampleRate of the PCM audio in Hz.
	SampleRate int

	// LanguageCode for transcription, e.g. "en". Empty lets the backend
	// pick.
	LanguageCode string

	// InterimResults requests non-final hypotheses where the backend
	// supports them.
	InterimResults bool
}

// TranscriptionResult is one unit of recognized text.
type TranscriptionResult struct {
	Text       string
	IsFinal    bool
	Confidence float32

	// ProviderName is the backend that produced the result.
	ProviderName string

	// ReceivedAt is when the result arrived from the backend.
	ReceivedAt time.Time
}
