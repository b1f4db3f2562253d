package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

func TestSpeakRequestCarriesModelEncodingAndAuth(t *testing.T) {
	type seen struct {
		query map[string]string
		auth  string
		text  string
	}
	requests := make(chan seen, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		query := map[string]string{}
		for key := range r.URL.Query() {
			query[key] = r.URL.Query().Get(key)
		}
		requests <- seen{query: query, auth: r.Header.Get("Authorization"), text: body.Text}
		_, _ = w.Write([]byte{1, 0, 2, 0})
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient(VoiceAuraLunaEn,
		WithAPIKey("key"),
		WithSpeakURL(server.URL+"/v1/speak"),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingLinear16}),
	)
	if err != nil {
		t.Fatalf("expected client, got %v", err)
	}
	if client.EncodingInfo().SampleRate != 24000 {
		t.Fatalf("expected configured encoding, got %+v", client.EncodingInfo())
	}

	var received int
	onAudio := func(audio []byte) error { received += len(audio); return nil }
	if err := client.Synthesize(context.Background(), texttospeech.Request{Text: "Hi there."}, onAudio); err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}
	if err := client.Synthesize(context.Background(), texttospeech.Request{Text: "Bye.", VoiceReferenceID: "aura-zeus-en"}, onAudio); err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	first := <-requests
	if first.auth != "Token key" {
		t.Fatalf("expected token auth header, got %q", first.auth)
	}
	if first.text != "Hi there." {
		t.Fatalf("expected text in body, got %q", first.text)
	}
	want := map[string]string{"model": "aura-luna-en", "encoding": "linear16", "sample_rate": "24000", "container": "none"}
	for key, value := range want {
		if first.query[key] != value {
			t.Fatalf("expected %s=%s, got %q", key, value, first.query[key])
		}
	}

	second := <-requests
	if second.query["model"] != "aura-zeus-en" {
		t.Fatalf("expected voice reference to override the model, got %q", second.query["model"])
	}
	if received != 8 {
		t.Fatalf("expected 8 bytes of audio, got %d", received)
	}
}

func TestNewClientValidatesConfiguration(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	if _, err := NewTextToSpeechClient("not-a-voice", WithAPIKey("key")); err == nil {
		t.Fatalf("expected unknown voice to be rejected")
	}
	if _, err := NewTextToSpeechClient(""); err == nil {
		t.Fatalf("expected missing api key to be rejected")
	}
	if _, err := NewTextToSpeechClient("", WithAPIKey("key"),
		WithEncodingInfo(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingMulaw})); err == nil {
		t.Fatalf("expected unsupported encoding to be rejected")
	}

	client, err := NewTextToSpeechClient("", WithAPIKey("key"))
	if err != nil {
		t.Fatalf("expected default voice, got %v", err)
	}
	if client.Voice() != defaultVoice {
		t.Fatalf("expected default voice, got %s", client.Voice())
	}
}
