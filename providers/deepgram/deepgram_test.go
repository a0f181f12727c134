package deepgram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
)

// newTestSession creates a session detached from any real connection.
func newTestSession(interim bool) (*Session, *ChannelHandler) {
	channelHandler := NewChannelHandler()
	session := &Session{
		ctx:            context.Background(),
		channelHandler: channelHandler,
		interim:        interim,
	}
	return session, channelHandler
}

func messageWith(transcript string, confidence float64, isFinal bool) *api.MessageResponse {
	return &api.MessageResponse{
		IsFinal: isFinal,
		Channel: api.Channel{
			Alternatives: []api.Alternative{
				{Transcript: transcript, Confidence: confidence},
			},
		},
	}
}

func TestSession_ProcessMessage(t *testing.T) {
	tests := []struct {
		name         string
		interim      bool
		messageResp  *api.MessageResponse
		expectResult bool
		expectedText string
		expectedFin  bool
	}{
		{
			name:         "final result with valid transcript",
			messageResp:  messageWith("hello world", 0.95, true),
			expectResult: true,
			expectedText: "hello world",
			expectedFin:  true,
		},
		{
			name:         "whitespace is trimmed",
			messageResp:  messageWith("  hello world  ", 0.9, true),
			expectResult: true,
			expectedText: "hello world",
			expectedFin:  true,
		},
		{
			name:         "non-final dropped without interim",
			messageResp:  messageWith("hello", 0.8, false),
			expectResult: false,
		},
		{
			name:         "non-final forwarded with interim",
			interim:      true,
			messageResp:  messageWith("hello", 0.8, false),
			expectResult: true,
			expectedText: "hello",
			expectedFin:  false,
		},
		{
			name: "empty alternatives dropped",
			messageResp: &api.MessageResponse{
				IsFinal: true,
				Channel: api.Channel{Alternatives: []api.Alternative{}},
			},
			expectResult: false,
		},
		{
			name:         "whitespace-only transcript dropped",
			messageResp:  messageWith("   ", 0.5, true),
			expectResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, _ := newTestSession(tt.interim)

			result := session.processMessage(tt.messageResp)

			if !tt.expectResult {
				assert.Nil(t, result)
				return
			}
			assert.NotNil(t, result)
			assert.Equal(t, tt.expectedText, result.Text)
			assert.Equal(t, tt.expectedFin, result.IsFinal)
			assert.Equal(t, providerName, result.ProviderName)
		})
	}
}

func TestSession_ReceiveTranscription(t *testing.T) {
	t.Run("returns final message", func(t *testing.T) {
		session, handler := newTestSession(false)
		handler.messageChan <- messageWith("over here", 0.97, true)

		result, err := session.ReceiveTranscription()
		assert.NoError(t, err)
		assert.Equal(t, "over here", result.Text)
		assert.True(t, result.IsFinal)
	})

	t.Run("skips interim then returns final", func(t *testing.T) {
		session, handler := newTestSession(false)
		handler.messageChan <- messageWith("over", 0.5, false)
		handler.messageChan <- messageWith("over here", 0.97, true)

		result, err := session.ReceiveTranscription()
		assert.NoError(t, err)
		assert.Equal(t, "over here", result.Text)
	})

	t.Run("close channel yields EOF", func(t *testing.T) {
		session, handler := newTestSession(false)
		handler.closeChan <- &api.CloseResponse{}

		_, err := session.ReceiveTranscription()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("error channel surfaces error", func(t *testing.T) {
		session, handler := newTestSession(false)
		handler.errorChan <- &api.ErrorResponse{
			Type:        "error",
			Description: "stream failed",
		}

		_, err := session.ReceiveTranscription()
		assert.Error(t, err)
	})

	t.Run("canceled context yields EOF", func(t *testing.T) {
		session, _ := newTestSession(false)
		ctx, cancel := context.WithCancel(context.Background())
		session.ctx = ctx
		cancel()

		_, err := session.ReceiveTranscription()
		assert.ErrorIs(t, err, io.EOF)
	})
}

type fakeWriter struct {
	written [][]byte
	err     error
	stopped bool
}

func (f *fakeWriter) Write(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.written = append(f.written, buf)
	return len(p), nil
}

func (f *fakeWriter) Stop() { f.stopped = true }

func TestSession_SendAudio(t *testing.T) {
	t.Run("writes audio through", func(t *testing.T) {
		writer := &fakeWriter{}
		session := &Session{ctx: context.Background(), client: writer}

		err := session.SendAudio([]byte{1, 2, 3, 4})
		assert.NoError(t, err)
		assert.Len(t, writer.written, 1)
	})

	t.Run("propagates write error", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("socket gone")}
		session := &Session{ctx: context.Background(), client: writer}

		err := session.SendAudio([]byte{1, 2})
		assert.Error(t, err)
	})
}

func TestSession_Close(t *testing.T) {
	writer := &fakeWriter{}
	session := &Session{ctx: context.Background(), client: writer}

	assert.NoError(t, session.Close())
	assert.True(t, writer.stopped)
}

func TestReceiveTranscription_Timestamps(t *testing.T) {
	session, handler := newTestSession(false)
	before := time.Now()
	handler.messageChan <- messageWith("timed", 0.9, true)

	result, err := session.ReceiveTranscription()
	assert.NoError(t, err)
	assert.False(t, result.ReceivedAt.Before(before))
}
