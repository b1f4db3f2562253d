package openai

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultModel = openai.GPT4oMini

// Client streams chat completions from OpenAI or any endpoint speaking the
// same protocol, such as Groq.
type Client struct {
	client       *openai.Client
	model        string
	systemPrompt string

	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.systemPrompt = prompt }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient reads the API key from OPENAI_API_KEY unless one is given.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:  defaultModel,
		apiKey: os.Getenv("OPENAI_API_KEY"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai api key not found")
	}

	config := openai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}
	config.HTTPClient = c.httpClient
	c.client = openai.NewClientWithConfig(config)
	return c, nil
}

func (c *Client) Model() string {
	return c.model
}
