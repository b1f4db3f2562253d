package deepgram

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

// TranscriptionClient streams audio to the Deepgram listen API. A client
// holds at most one open link at a time.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	dialer    *websocket.Dialer

	handlers speechtotext.HandlerSlot

	connectMu sync.Mutex
	stream    atomic.Pointer[stream]

	droppedFrames atomic.Uint64
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey sets the API key. By default it is read from DEEPGRAM_API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

// WithListenURL points the client at a different listen endpoint.
func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) { c.dialer = dialer }
}

func NewTranscriptionClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey:    os.Getenv("DEEPGRAM_API_KEY"),
		listenURL: defaultListenURL,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *TranscriptionClient) SetHandlers(handlers speechtotext.Handlers) {
	c.handlers.Set(handlers)
}

// IsConnected reports whether a link is currently open.
func (c *TranscriptionClient) IsConnected() bool {
	s := c.stream.Load()
	return s != nil && !s.closing.Load()
}

// DroppedFrames returns how many audio frames were dropped because the link
// was closed or backed up.
func (c *TranscriptionClient) DroppedFrames() uint64 {
	return c.droppedFrames.Load()
}

var _ speechtotext.Streamer = (*TranscriptionClient)(nil)
