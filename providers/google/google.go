// Package google bridges the development server to Google Cloud
// Speech-to-Text streaming recognition.
package google

import (
	"context"
	"errors"
	"io"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cherrries/WhisperLive/providers"
)

const providerName = "google"

// streamingRecognizeClient wraps the methods we use from
// speechpb.Speech_StreamingRecognizeClient so tests can substitute a fake.
type streamingRecognizeClient interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Provider implements providers.Provider for Google Cloud Speech.
type Provider struct {
	client *speech.Client
}

// NewProvider creates a Google Speech provider with the given client.
func NewProvider(client *speech.Client) *Provider {
	return &Provider{client: client}
}

// Name returns the name of the provider.
func (p *Provider) Name() string {
	return providerName
}

// NewSession opens a streaming recognize call and sends its configuration
// request.
func (p *Provider) NewSession(ctx context.Context, config providers.SessionConfig) (providers.Session, error) {
	stream, err := p.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.LanguageCode,
				},
				InterimResults: config.InterimResults,
			},
		},
	}

	if err := stream.Send(req); err != nil {
		stream.CloseSend()
		return nil, err
	}

	return &Session{
		stream: stream,
		ctx:    ctx,
	}, nil
}

// Session implements providers.Session for Google Cloud Speech.
type Session struct {
	stream streamingRecognizeClient
	ctx    context.Context
}

// SendAudio sends PCM audio to the recognize stream.
func (s *Session) SendAudio(audioData []byte) error {
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audioData,
		},
	}
	return s.stream.Send(req)
}

// ReceiveTranscription blocks until a final result is available or the
// stream ends.
func (s *Session) ReceiveTranscription() (providers.TranscriptionResult, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			return providers.TranscriptionResult{}, io.EOF
		}
		if err != nil {
			return providers.TranscriptionResult{}, err
		}

		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				alt := result.Alternatives[0]
				return providers.TranscriptionResult{
					Text:         alt.Transcript,
					IsFinal:      true,
					Confidence:   alt.Confidence,
					ProviderName: providerName,
					ReceivedAt:   time.Now(),
				}, nil
			}
		}
	}
}

// Close half-closes the recognize stream.
func (s *Session) Close() error {
	return s.stream.CloseSend()
}
