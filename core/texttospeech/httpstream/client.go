package httpstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultReadSize = 4096
	maxErrorBody    = 1024
)

// Decoder turns a response body into PCM as it is read.
type Decoder interface {
	Decode(ctx context.Context, body io.Reader, onAudio func(audio []byte) error) error
	EncodingInfo() audio.EncodingInfo
}

// RequestBuilder creates the HTTP request for a piece of text.
type RequestBuilder func(ctx context.Context, req texttospeech.Request) (*http.Request, error)

// Client synthesizes speech by POSTing text to an endpoint that streams the
// audio back in a chunked response body.
type Client struct {
	httpClient   *http.Client
	buildRequest RequestBuilder
	decoder      Decoder
	encoding     audio.EncodingInfo
	readSize     int
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRequestBuilder replaces the default JSON request.
func WithRequestBuilder(builder RequestBuilder) ClientOption {
	return func(c *Client) { c.buildRequest = builder }
}

// WithDecoder decodes response bodies instead of passing them through.
func WithDecoder(decoder Decoder) ClientOption {
	return func(c *Client) { c.decoder = decoder }
}

// WithEncodingInfo describes the raw PCM the endpoint returns. It is
// ignored when a decoder is set.
func WithEncodingInfo(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

func WithReadSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.readSize = size
		}
	}
}

// NewClient returns a client posting `{"text": ..., "voice_reference_id": ...}`
// to endpoint with the given headers.
func NewClient(endpoint string, header http.Header, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		buildRequest: JSONRequestBuilder(endpoint, header),
		encoding:     audio.GetDefaultEncodingInfo(),
		readSize:     DefaultReadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesisRequest struct {
	Text             string `json:"text"`
	VoiceReferenceID string `json:"voice_reference_id,omitempty"`
}

func JSONRequestBuilder(endpoint string, header http.Header) RequestBuilder {
	return func(ctx context.Context, req texttospeech.Request) (*http.Request, error) {
		body, err := json.Marshal(synthesisRequest{Text: req.Text, VoiceReferenceID: req.VoiceReferenceID})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create synthesis request: %w", err)
		}
		for key, values := range header {
			for _, value := range values {
				httpReq.Header.Add(key, value)
			}
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	if c.decoder != nil {
		return c.decoder.EncodingInfo()
	}
	return c.encoding
}

// Synthesize streams the response body to onAudio as it arrives.
func (c *Client) Synthesize(ctx context.Context, req texttospeech.Request, onAudio func(audio []byte) error) error {
	ctx, span := tracer.Start(ctx, "synthesis request")
	defer span.End()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("request.url", httpReq.URL.String()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("error sending synthesis request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &texttospeech.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(errorBody)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		err := fmt.Errorf("%w: empty response body", texttospeech.ErrSynthesisHTTP)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if c.decoder != nil {
		return c.decoder.Decode(ctx, resp.Body, onAudio)
	}

	buf := make([]byte, c.readSize)
	received := 0
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += n
			run := make([]byte, n)
			copy(run, buf[:n])
			if err := onAudio(run); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read synthesis response: %w", err)
		}
	}
	span.SetAttributes(attribute.Int("response.bytes", received))

	if received == 0 {
		return fmt.Errorf("%w: empty response body", texttospeech.ErrSynthesisHTTP)
	}
	return nil
}

var _ texttospeech.Synthesizer = (*Client)(nil)
