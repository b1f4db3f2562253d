package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/core/texttospeech/httpstream"
)

const defaultSpeakURL = "https://api.deepgram.com/v1/speak"

// TextToSpeechClient synthesizes speech through Deepgram's REST speak
// endpoint, which streams raw PCM back in the response body.
type TextToSpeechClient struct {
	*httpstream.Client

	apiKey   string
	speakURL string
	voice    Voice
	encoding audio.EncodingInfo

	clientOptions []httpstream.ClientOption
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func WithEncodingInfo(encoding audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) { c.encoding = encoding }
}

// WithHTTPOptions passes options through to the underlying HTTP client.
func WithHTTPOptions(opts ...httpstream.ClientOption) ClientOption {
	return func(c *TextToSpeechClient) { c.clientOptions = append(c.clientOptions, opts...) }
}

func NewTextToSpeechClient(voice Voice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	client := &TextToSpeechClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		speakURL: defaultSpeakURL,
		voice:    voice,
		encoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	encoding, err := convertEncoding(client.encoding)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(client.speakURL); err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	clientOptions := append([]httpstream.ClientOption{
		httpstream.WithRequestBuilder(client.buildRequest(encoding)),
		httpstream.WithEncodingInfo(client.encoding),
	}, client.clientOptions...)
	client.Client = httpstream.NewClient(client.speakURL, nil, clientOptions...)

	return client, nil
}

func (c *TextToSpeechClient) Voice() Voice {
	return c.voice
}

type speakRequest struct {
	Text string `json:"text"`
}

// buildRequest uses the request's voice reference as the model when set.
func (c *TextToSpeechClient) buildRequest(encoding *encodingInfo) httpstream.RequestBuilder {
	return func(ctx context.Context, req texttospeech.Request) (*http.Request, error) {
		model := string(c.voice)
		if req.VoiceReferenceID != "" {
			model = req.VoiceReferenceID
		}

		urlValues := url.Values{}
		urlValues.Set("model", model)
		urlValues.Set("encoding", encoding.Format.Name())
		urlValues.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
		urlValues.Set("container", "none")

		body, err := json.Marshal(speakRequest{Text: req.Text})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal speak request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.speakURL+"?"+urlValues.Encode(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create speak request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Token "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	}
}

var _ texttospeech.Synthesizer = (*TextToSpeechClient)(nil)
