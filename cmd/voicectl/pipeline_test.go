package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/internal/config"
)

func TestBuildSynthesizerHTTPProvider(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.Write(make([]byte, 320))
	}))
	defer server.Close()

	cfg := config.Default().Synthesis
	cfg.Provider = "http"
	cfg.Endpoint = server.URL
	cfg.APIKey = "secret"

	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		t.Fatalf("expected synthesizer, got %v", err)
	}
	if got := synthesizer.EncodingInfo().SampleRate; got != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", got)
	}

	received := 0
	err = synthesizer.Synthesize(context.Background(), texttospeech.Request{Text: "hi"}, func(audio []byte) error {
		received += len(audio)
		return nil
	})
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}
	if received != 320 || authorization != "Bearer secret" {
		t.Fatalf("unexpected synthesis: %d bytes, authorization %q", received, authorization)
	}
}

func TestBuildSynthesizerMPEGDecodesAtConfiguredRate(t *testing.T) {
	cfg := config.Default().Synthesis
	cfg.Provider = "http"
	cfg.Endpoint = "https://tts.example.com/stream"
	cfg.Format = "mpeg"
	cfg.SampleRate = 24000

	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		t.Fatalf("expected synthesizer, got %v", err)
	}
	if got := synthesizer.EncodingInfo().SampleRate; got != 24000 {
		t.Fatalf("expected decoder rate 24000, got %d", got)
	}
}

func TestBuildSynthesizerDeepgram(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	cfg := config.Default().Synthesis
	if _, err := buildSynthesizer(cfg); err == nil {
		t.Fatalf("expected missing api key to fail")
	}

	cfg.APIKey = "dg-key"
	cfg.Voice = "aura-orpheus-en"
	if _, err := buildSynthesizer(cfg); err != nil {
		t.Fatalf("expected deepgram synthesizer, got %v", err)
	}

	cfg.Voice = "robot"
	if _, err := buildSynthesizer(cfg); err == nil || !strings.Contains(err.Error(), "invalid voice") {
		t.Fatalf("expected invalid voice error, got %v", err)
	}
}

func TestCaptureConstraintsFromConfig(t *testing.T) {
	cfg := config.Default().Audio
	disabled := false
	cfg.NoiseSuppression = &disabled
	cfg.AutoGainControl = nil
	cfg.SampleRate = 48000
	cfg.FrameSize = 1024

	constraints := captureConstraints(cfg)
	if constraints.NoiseSuppression {
		t.Fatalf("expected noise suppression to be disabled")
	}
	if !constraints.AutoGainControl || !constraints.EchoCancellation {
		t.Fatalf("expected unset constraints to keep their defaults, got %+v", constraints)
	}
	if constraints.SampleRate != 48000 || constraints.FrameSize != 1024 || constraints.Channels != 1 {
		t.Fatalf("unexpected constraints %+v", constraints)
	}
}

func TestRunPrintsSchema(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"schema"}, &out); err != nil {
		t.Fatalf("expected schema, got %v", err)
	}
	if !json.Valid(out.Bytes()) {
		t.Fatalf("expected json schema, got %s", out.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run([]string{"-env", t.TempDir() + "/missing.env", "dance"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown command to fail")
	}
	if err := run(nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected missing command to fail")
	}
}
