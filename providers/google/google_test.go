package google

import (
	"context"
	"errors"
	"io"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeStream implements streamingRecognizeClient, replaying queued
// responses and recording sent requests.
type fakeStream struct {
	sent      []*speechpb.StreamingRecognizeRequest
	sendErr   error
	responses []*speechpb.StreamingRecognizeResponse
	recvErr   error
	closed    bool
}

func (f *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(f.responses) == 0 {
		if f.recvErr != nil {
			return nil, f.recvErr
		}
		return nil, io.EOF
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeStream) CloseSend() error {
	f.closed = true
	return nil
}

func responseWith(transcript string, confidence float32, isFinal bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{
				IsFinal: isFinal,
				Alternatives: []*speechpb.SpeechRecognitionAlternative{
					{Transcript: transcript, Confidence: confidence},
				},
			},
		},
	}
}

func TestSession_SendAudio(t *testing.T) {
	t.Run("wraps audio in a request", func(t *testing.T) {
		stream := &fakeStream{}
		session := &Session{stream: stream, ctx: context.Background()}

		err := session.SendAudio([]byte{1, 2, 3, 4})
		assert.NoError(t, err)
		assert.Len(t, stream.sent, 1)
		audio, ok := stream.sent[0].StreamingRequest.(*speechpb.StreamingRecognizeRequest_AudioContent)
		assert.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3, 4}, audio.AudioContent)
	})

	t.Run("propagates send error", func(t *testing.T) {
		stream := &fakeStream{sendErr: errors.New("stream broken")}
		session := &Session{stream: stream, ctx: context.Background()}

		err := session.SendAudio([]byte{1})
		assert.Error(t, err)
	})
}

func TestSession_ReceiveTranscription(t *testing.T) {
	tests := []struct {
		name         string
		responses    []*speechpb.StreamingRecognizeResponse
		recvErr      error
		expectedText string
		expectEOF    bool
		expectErr    bool
	}{
		{
			name:         "final result returned",
			responses:    []*speechpb.StreamingRecognizeResponse{responseWith("hello world", 0.95, true)},
			expectedText: "hello world",
		},
		{
			name: "interim results skipped",
			responses: []*speechpb.StreamingRecognizeResponse{
				responseWith("hello", 0.5, false),
				responseWith("hello world", 0.95, true),
			},
			expectedText: "hello world",
		},
		{
			name: "empty results skipped",
			responses: []*speechpb.StreamingRecognizeResponse{
				{},
				responseWith("after empty", 0.9, true),
			},
			expectedText: "after empty",
		},
		{
			name:      "EOF when stream ends",
			expectEOF: true,
		},
		{
			name:      "canceled stream maps to EOF",
			recvErr:   status.Error(codes.Canceled, "context canceled"),
			expectEOF: true,
		},
		{
			name:      "other errors surface",
			recvErr:   status.Error(codes.Unavailable, "backend down"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &fakeStream{responses: tt.responses, recvErr: tt.recvErr}
			session := &Session{stream: stream, ctx: context.Background()}

			result, err := session.ReceiveTranscription()

			if tt.expectEOF {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedText, result.Text)
			assert.True(t, result.IsFinal)
			assert.Equal(t, providerName, result.ProviderName)
		})
	}
}

func TestSession_Close(t *testing.T) {
	stream := &fakeStream{}
	session := &Session{stream: stream, ctx: context.Background()}

	assert.NoError(t, session.Close())
	assert.True(t, stream.closed)
}
