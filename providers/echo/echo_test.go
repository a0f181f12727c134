package echo

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherrries/WhisperLive/providers"
)

func newTestSession(t *testing.T, script []string, chunk time.Duration) providers.Session {
	t.Helper()
	provider := NewProvider(script, chunk)
	session, err := provider.NewSession(context.Background(), providers.SessionConfig{
		SampleRate: 16000,
	})
	require.NoError(t, err)
	return session
}

func TestSendAudio_EmitsPerChunk(t *testing.T) {
	// 10ms chunks at 16kHz PCM16 are 320 bytes.
	session := newTestSession(t, []string{"one", "two"}, 10*time.Millisecond)

	// Not enough for a chunk yet.
	require.NoError(t, session.SendAudio(make([]byte, 100)))

	// Crosses the first boundary.
	require.NoError(t, session.SendAudio(make([]byte, 300)))

	result, err := session.ReceiveTranscription()
	require.NoError(t, err)
	assert.Equal(t, "one", result.Text)
	assert.True(t, result.IsFinal)
	assert.Equal(t, "echo", result.ProviderName)
}

func TestSendAudio_MultipleChunksInOneWrite(t *testing.T) {
	session := newTestSession(t, []string{"one", "two", "three"}, 10*time.Millisecond)

	// Three chunks worth at once.
	require.NoError(t, session.SendAudio(make([]byte, 3*320)))

	for _, want := range []string{"one", "two", "three"} {
		result, err := session.ReceiveTranscription()
		require.NoError(t, err)
		assert.Equal(t, want, result.Text)
	}
}

func TestScriptWrapsAround(t *testing.T) {
	session := newTestSession(t, []string{"a", "b"}, 10*time.Millisecond)

	require.NoError(t, session.SendAudio(make([]byte, 3*320)))

	var texts []string
	for i := 0; i < 3; i++ {
		result, err := session.ReceiveTranscription()
		require.NoError(t, err)
		texts = append(texts, result.Text)
	}
	assert.Equal(t, []string{"a", "b", "a"}, texts)
}

func TestClose_UnblocksReceive(t *testing.T) {
	session := newTestSession(t, nil, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := session.ReceiveTranscription()
		done <- err
	}()

	require.NoError(t, session.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("ReceiveTranscription did not return after Close")
	}
}

func TestClose_Idempotent(t *testing.T) {
	session := newTestSession(t, nil, time.Second)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestDefaults(t *testing.T) {
	provider := NewProvider(nil, 0)
	assert.Equal(t, "echo", provider.Name())
	assert.Equal(t, DefaultScript, provider.script)
	assert.Equal(t, 2*time.Second, provider.chunkDuration)
}
