// Package deepgram bridges the development server to Deepgram's live
// transcription API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/cherrries/WhisperLive/providers"
)

const providerName = "deepgram"

// defaultModel is used when no model is configured.
const defaultModel = "nova-3"

// dgWriter is the subset of the SDK websocket client the session needs;
// tests substitute a fake.
type dgWriter interface {
	io.Writer
	Stop()
}

// ChannelHandler receives Deepgram callback events on channels so the
// session can consume them from a single select loop.
type ChannelHandler struct {
	openChan          chan *api.OpenResponse
	messageChan       chan *api.MessageResponse
	metadataChan      chan *api.MetadataResponse
	speechStartedChan chan *api.SpeechStartedResponse
	utteranceEndChan  chan *api.UtteranceEndResponse
	closeChan         chan *api.CloseResponse
	errorChan         chan *api.ErrorResponse
	unhandledChan     chan *[]byte
}

// NewChannelHandler creates a handler with initialized channels.
func NewChannelHandler() *ChannelHandler {
	return &ChannelHandler{
		openChan:          make(chan *api.OpenResponse, 1),
		messageChan:       make(chan *api.MessageResponse, 10),
		metadataChan:      make(chan *api.MetadataResponse, 1),
		speechStartedChan: make(chan *api.SpeechStartedResponse, 1),
		utteranceEndChan:  make(chan *api.UtteranceEndResponse, 1),
		closeChan:         make(chan *api.CloseResponse, 1),
		errorChan:         make(chan *api.ErrorResponse, 1),
		unhandledChan:     make(chan *[]byte, 1),
	}
}

func (ch *ChannelHandler) GetOpen() []*chan *api.OpenResponse {
	return []*chan *api.OpenResponse{&ch.openChan}
}

func (ch *ChannelHandler) GetMessage() []*chan *api.MessageResponse {
	return []*chan *api.MessageResponse{&ch.messageChan}
}

func (ch *ChannelHandler) GetMetadata() []*chan *api.MetadataResponse {
	return []*chan *api.MetadataResponse{&ch.metadataChan}
}

func (ch *ChannelHandler) GetSpeechStarted() []*chan *api.SpeechStartedResponse {
	return []*chan *api.SpeechStartedResponse{&ch.speechStartedChan}
}

func (ch *ChannelHandler) GetUtteranceEnd() []*chan *api.UtteranceEndResponse {
	return []*chan *api.UtteranceEndResponse{&ch.utteranceEndChan}
}

func (ch *ChannelHandler) GetClose() []*chan *api.CloseResponse {
	return []*chan *api.CloseResponse{&ch.closeChan}
}

func (ch *ChannelHandler) GetError() []*chan *api.ErrorResponse {
	return []*chan *api.ErrorResponse{&ch.errorChan}
}

func (ch *ChannelHandler) GetUnhandled() []*chan *[]byte {
	return []*chan *[]byte{&ch.unhandledChan}
}

// Provider implements providers.Provider on top of Deepgram's live API.
type Provider struct {
	apiKey string
	model  string
}

// NewProvider creates a Deepgram provider. An empty model selects
// defaultModel.
func NewProvider(apiKey, model string) *Provider {
	client.InitWithDefault()

	if model == "" {
		model = defaultModel
	}
	return &Provider{apiKey: apiKey, model: model}
}

// Name returns the name of the provider.
func (p *Provider) Name() string {
	return providerName
}

// NewSession opens a live transcription websocket to Deepgram.
func (p *Provider) NewSession(ctx context.Context, config providers.SessionConfig) (providers.Session, error) {
	cOptions := &interfaces.ClientOptions{
		APIKey:          p.apiKey,
		EnableKeepAlive: true,
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          p.model,
		Language:       config.LanguageCode,
		Punctuate:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     config.SampleRate,
		VadEvents:      true,
		InterimResults: config.InterimResults,
		UtteranceEndMs: "1000",
	}

	channelHandler := NewChannelHandler()

	dgClient, err := client.NewWSUsingChan(ctx, "", cOptions, tOptions, channelHandler)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ctx:            ctx,
		client:         dgClient,
		channelHandler: channelHandler,
		interim:        config.InterimResults,
	}

	if success := dgClient.Connect(); !success {
		return nil, errors.New("failed to connect to deepgram")
	}

	return session, nil
}

// Session implements providers.Session on a Deepgram live connection.
type Session struct {
	ctx            context.Context
	client         dgWriter
	channelHandler *ChannelHandler
	interim        bool
}

// SendAudio writes PCM audio to the Deepgram stream.
func (s *Session) SendAudio(audioData []byte) error {
	_, err := s.client.Write(audioData)
	return err
}

// ReceiveTranscription blocks until the next usable transcription result.
func (s *Session) ReceiveTranscription() (providers.TranscriptionResult, error) {
	for {
		select {
		case msg := <-s.channelHandler.messageChan:
			if msg == nil {
				continue
			}
			if result := s.processMessage(msg); result != nil {
				return *result, nil
			}
		case err := <-s.channelHandler.errorChan:
			if err != nil {
				return providers.TranscriptionResult{}, fmt.Errorf("%s", err)
			}
		case <-s.channelHandler.closeChan:
			return providers.TranscriptionResult{}, io.EOF
		case <-s.channelHandler.openChan:
		case <-s.channelHandler.metadataChan:
		case <-s.channelHandler.speechStartedChan:
		case <-s.channelHandler.utteranceEndChan:
		case <-s.channelHandler.unhandledChan:
		case <-s.ctx.Done():
			if s.ctx.Err() == context.Canceled {
				return providers.TranscriptionResult{}, io.EOF
			}
			return providers.TranscriptionResult{}, s.ctx.Err()
		}
	}
}

// processMessage extracts a result from one message, or nil when the
// message carries nothing worth forwarding.
func (s *Session) processMessage(msg *api.MessageResponse) *providers.TranscriptionResult {
	if len(msg.Channel.Alternatives) == 0 {
		return nil
	}

	alternative := msg.Channel.Alternatives[0]
	sentence := strings.TrimSpace(alternative.Transcript)
	if sentence == "" {
		return nil
	}

	if !msg.IsFinal && !s.interim {
		return nil
	}

	return &providers.TranscriptionResult{
		Text:         sentence,
		IsFinal:      msg.IsFinal,
		Confidence:   float32(alternative.Confidence),
		ProviderName: providerName,
		ReceivedAt:   time.Now(),
	}
}

// Close stops the Deepgram connection.
func (s *Session) Close() error {
	if s.client != nil {
		s.client.Stop()
	}

	// The SDK may still push in-flight events after Stop, so the handler
	// channels are deliberately left open.
	return nil
}
