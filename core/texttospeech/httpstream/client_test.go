package httpstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

func TestClientStreamsResponseBodyInOrder(t *testing.T) {
	first := bytes.Repeat([]byte{0x01}, 1024)
	second := bytes.Repeat([]byte{0x02}, 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		var body struct {
			Text             string `json:"text"`
			VoiceReferenceID string `json:"voice_reference_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if body.Text != "Hello world." || body.VoiceReferenceID != "voice-1" {
			t.Errorf("unexpected request body %+v", body)
		}

		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(first)
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write(second)
		flusher.Flush()
	}))
	defer server.Close()

	client := NewClient(server.URL, http.Header{"X-Api-Key": {"secret"}})

	var received []byte
	runs := 0
	err := client.Synthesize(context.Background(),
		texttospeech.Request{Text: "Hello world.", VoiceReferenceID: "voice-1"},
		func(audio []byte) error {
			runs++
			received = append(received, audio...)
			return nil
		})
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	if !bytes.Equal(received, append(append([]byte(nil), first...), second...)) {
		t.Fatalf("expected both chunks in order, got %d bytes", len(received))
	}
	if runs < 2 {
		t.Fatalf("expected audio to be delivered incrementally, got %d runs", runs)
	}
}

func TestClientReportsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.Synthesize(context.Background(), texttospeech.Request{Text: "hi"}, func([]byte) error {
		t.Fatalf("expected no audio for a failed request")
		return nil
	})

	if !errors.Is(err, texttospeech.ErrSynthesisHTTP) {
		t.Fatalf("expected synthesis HTTP error, got %v", err)
	}
	var statusErr *texttospeech.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestClientReportsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.Synthesize(context.Background(), texttospeech.Request{Text: "hi"}, func([]byte) error { return nil })
	if !errors.Is(err, texttospeech.ErrSynthesisHTTP) {
		t.Fatalf("expected synthesis HTTP error for empty body, got %v", err)
	}
}

func TestClientCancellationReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{1, 2, 3, 4})
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(server.URL, nil)
	err := client.Synthesize(ctx, texttospeech.Request{Text: "hi"}, func([]byte) error {
		cancel()
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestClientStopsWhenSinkFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{1}, 64))
	}))
	defer server.Close()

	sinkErr := errors.New("sink gone")
	client := NewClient(server.URL, nil)
	err := client.Synthesize(context.Background(), texttospeech.Request{Text: "hi"}, func([]byte) error { return sinkErr })
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

type upperDecoder struct{}

func (upperDecoder) Decode(_ context.Context, body io.Reader, onAudio func([]byte) error) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return onAudio(bytes.ToUpper(data))
}

func (upperDecoder) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 22050, Format: audio.EncodingLinear16}
}

func TestClientUsesDecoder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("abc"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, WithDecoder(upperDecoder{}))
	if client.EncodingInfo().SampleRate != 22050 {
		t.Fatalf("expected decoder encoding info")
	}

	var got []byte
	if err := client.Synthesize(context.Background(), texttospeech.Request{Text: "hi"}, func(audio []byte) error {
		got = append(got, audio...)
		return nil
	}); err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}
	if string(got) != "ABC" {
		t.Fatalf("expected decoded audio, got %q", got)
	}
}
