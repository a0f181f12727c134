// Package echo is a deterministic transcription backend for development and
// tests. It emits a scripted phrase for every fixed amount of audio
// received, without looking at the samples.
package echo

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cherrries/WhisperLive/providers"
)

const providerName = "echo"

// DefaultScript is cycled through when no script is configured.
var DefaultScript = []string{
	"the quick brown fox jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
	"how vexingly quick daft zebras jump",
}

// Provider implements providers.Provider with canned results.
type Provider struct {
	script []string

	// ChunkDuration is how much audio triggers one result.
	chunkDuration time.Duration
}

// NewProvider creates an echo provider. A nil script uses DefaultScript.
func NewProvider(script []string, chunkDuration time.Duration) *Provider {
	if len(script) == 0 {
		script = DefaultScript
	}
	if chunkDuration <= 0 {
		chunkDuration = 2 * time.Second
	}
	return &Provider{script: script, chunkDuration: chunkDuration}
}

// Name returns the name of the provider.
func (p *Provider) Name() string {
	return providerName
}

// NewSession creates an echo session.
func (p *Provider) NewSession(ctx context.Context, config providers.SessionConfig) (providers.Session, error) {
	rate := config.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	// 2 bytes per PCM sample.
	chunkBytes := int(p.chunkDuration.Seconds() * float64(rate) * 2)

	return &Session{
		ctx:        ctx,
		script:     p.script,
		chunkBytes: chunkBytes,
		results:    make(chan providers.TranscriptionResult, 4),
		closed:     make(chan struct{}),
	}, nil
}

// Session implements providers.Session with scripted results.
type Session struct {
	ctx        context.Context
	script     []string
	chunkBytes int
	results    chan providers.TranscriptionResult

	mu        sync.Mutex
	pending   int
	cursor    int
	closeOnce sync.Once
	closed    chan struct{}
}

// SendAudio counts received bytes and queues the next scripted phrase each
// time a chunk's worth of audio has arrived.
func (s *Session) SendAudio(audioData []byte) error {
	s.mu.Lock()
	s.pending += len(audioData)
	var emitted []providers.TranscriptionResult
	for s.pending >= s.chunkBytes {
		s.pending -= s.chunkBytes
		emitted = append(emitted, providers.TranscriptionResult{
			Text:         s.script[s.cursor%len(s.script)],
			IsFinal:      true,
			Confidence:   1.0,
			ProviderName: providerName,
			ReceivedAt:   time.Now(),
		})
		s.cursor++
	}
	s.mu.Unlock()

	for _, result := range emitted {
		select {
		case s.results <- result:
		case <-s.closed:
			return io.EOF
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
	return nil
}

// ReceiveTranscription blocks until the next scripted result.
func (s *Session) ReceiveTranscription() (providers.TranscriptionResult, error) {
	select {
	case result := <-s.results:
		return result, nil
	case <-s.closed:
		return providers.TranscriptionResult{}, io.EOF
	case <-s.ctx.Done():
		return providers.TranscriptionResult{}, io.EOF
	}
}

// Close ends the session; pending results are discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
