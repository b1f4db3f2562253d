package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const closeTimeout = 2 * time.Second

// stream is a single open link. It is discarded after it closes.
type stream struct {
	conn     *websocket.Conn
	handlers *speechtotext.HandlerSlot

	outbound chan []byte
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu  sync.Mutex
	lastSend atomic.Int64

	closing   atomic.Bool
	errOnce   sync.Once
	closeOnce sync.Once
}

// Connect opens the link and starts delivering events to handlers. OnOpen is
// called once the link is up. If the link cannot be opened OnError is called
// and the returned error wraps [speechtotext.ErrConnection].
func (c *TranscriptionClient) Connect(ctx context.Context, handlers speechtotext.Handlers, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "connect transcription")
	defer span.End()

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.handlers.Set(handlers)

	options := speechtotext.DefaultTranscriptionOptions()
	for _, opt := range opts {
		opt(&options)
	}

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.handlers.Error(err)
		return err
	}

	if s := c.stream.Load(); s != nil && !s.closing.Load() {
		return fail(fmt.Errorf("%w: already connected", speechtotext.ErrConnection))
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fail(fmt.Errorf("invalid encoding: %w", err))
	}
	span.SetAttributes(
		attribute.String("transcription.model", options.Model),
		attribute.Int("transcription.sample_rate", encoding.SampleRate),
	)

	conn, err := c.connectWebsocket(ctx, connectionOptions{
		sampleRate:     encoding.SampleRate,
		encoding:       encoding.Format.Name(),
		model:          options.Model,
		language:       options.Language,
		interimResults: options.InterimResults,
		speechEvents:   options.SpeechEvents,
	})
	if err != nil {
		return fail(fmt.Errorf("%w: %w", speechtotext.ErrConnection, err))
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &stream{
		conn:     conn,
		handlers: &c.handlers,
		outbound: make(chan []byte, options.SendQueueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.lastSend.Store(time.Now().UnixNano())
	c.stream.Store(s)

	go s.runSender(streamCtx, options.KeepAliveInterval)
	go s.readAndProcessMessages()

	c.handlers.Open()
	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	model      string
	language   string

	interimResults bool
	speechEvents   bool
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	if options.speechEvents {
		// utterance end detection requires interim results
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
		queryParams.Set("vad_events", "true")
	} else if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := c.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// SendAudio queues a frame for the sender goroutine. The frame is copied.
func (c *TranscriptionClient) SendAudio(pcm []byte) bool {
	s := c.stream.Load()
	if s == nil || s.closing.Load() || len(pcm) == 0 {
		c.droppedFrames.Add(1)
		return false
	}

	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	select {
	case s.outbound <- frame:
		return true
	default:
		c.droppedFrames.Add(1)
		return false
	}
}

// Disconnect asks the provider to close the stream and tears the link down.
// Calling it when not connected is a no-op.
func (c *TranscriptionClient) Disconnect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	s := c.stream.Swap(nil)
	if s == nil {
		return nil
	}
	return s.close()
}

func (s *stream) runSender(ctx context.Context, keepAliveInterval time.Duration) {
	var keepAlive <-chan time.Time
	if keepAliveInterval > 0 {
		ticker := time.NewTicker(min(keepAliveInterval, time.Second))
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.outbound:
			if err := s.write(websocket.BinaryMessage, frame); err != nil {
				s.fail(fmt.Errorf("%w: failed to write audio: %w", speechtotext.ErrConnection, err))
				return
			}
		case <-keepAlive:
			idle := time.Since(time.Unix(0, s.lastSend.Load()))
			if idle < keepAliveInterval {
				continue
			}
			if err := s.writeJSON(controlMessage{Type: "KeepAlive"}); err != nil {
				logger.Warn("failed to send deepgram keep alive", "error", err)
			}
		}
	}
}

func (s *stream) readAndProcessMessages() {
	defer close(s.done)
	defer s.finish()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			s.fail(fmt.Errorf("%w: %w", speechtotext.ErrConnection, err))
			return
		}
		if msgType == websocket.TextMessage {
			s.processMessage(msg)
		}
	}
}

func (s *stream) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if transcript == "" {
			return
		}
		s.handlers.Segment(speechtotext.Segment{
			Text:      transcript,
			IsFinal:   msgResp.IsFinal,
			Timestamp: time.Now(),
		})

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram utterance end", "error", err)
			return
		}
		s.handlers.UtteranceEnd()

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram speech started", "error", err)
			return
		}
		s.handlers.SpeechStarted()

	default:
		logger.Debug("ignoring deepgram message", "type", parsedMsg.Type)
	}
}

type controlMessage struct {
	Type string `json:"type"`
}

func (s *stream) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	s.lastSend.Store(time.Now().UnixNano())
	return nil
}

func (s *stream) writeJSON(msg controlMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	s.lastSend.Store(time.Now().UnixNano())
	return nil
}

func (s *stream) fail(err error) {
	if s.closing.Load() {
		return
	}
	s.errOnce.Do(func() {
		logger.Error("deepgram transcription link failed", "error", err)
		s.handlers.Error(err)
	})
	s.finish()
}

// finish releases the connection and reports the close. Safe to call from
// both goroutines and from close.
func (s *stream) finish() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
		_ = s.conn.Close()
		s.handlers.Close()
	})
}

func (s *stream) close() error {
	if !s.closing.CompareAndSwap(false, true) {
		<-s.done
		return nil
	}
	s.cancel()

	var errs []error
	if err := s.writeJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		errs = append(errs, fmt.Errorf("failed to send close stream: %w", err))
	}
	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		errs = append(errs, fmt.Errorf("failed to send close message: %w", err))
	}

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		s.finish()
		<-s.done
	}
	s.finish()

	return errors.Join(errs...)
}
