package main

import (
	"errors"
	"fmt"
	"net/http"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	deepgramstt "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech/httpstream"
	"github.com/koscakluka/ema-voice/core/texttospeech/mpeg"
	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/koscakluka/ema-voice/internal/metrics"
)

// pipeline owns the audio backends behind an orchestrator.
type pipeline struct {
	*orchestration.Orchestrator

	closers []func()
}

func (p *pipeline) Close() error {
	err := p.Orchestrator.Close()
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	return err
}

func newPipeline(cfg *config.Config, m *metrics.Metrics, opts ...orchestration.OrchestratorOption) (*pipeline, error) {
	p := &pipeline{}

	playback, err := miniaudio.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback backend: %w", err)
	}
	p.closers = append(p.closers, playback.Close)

	var capture audio.CaptureOpener = playback
	if cfg.Audio.Backend == "portaudio" {
		client, err := portaudio.NewClient()
		if err != nil {
			playback.Close()
			return nil, fmt.Errorf("failed to initialize capture backend: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		capture = client
	}

	synthesizer, err := buildSynthesizer(cfg.Synthesis)
	if err != nil {
		for _, closeBackend := range p.closers {
			closeBackend()
		}
		return nil, err
	}

	options := append([]orchestration.OrchestratorOption{
		orchestration.WithCaptureOpener(capture),
		orchestration.WithPlaybackOpener(playback),
		orchestration.WithSpeechToTextClient(buildTranscriber(cfg.Transcription)),
		orchestration.WithTextToSpeechClient(synthesizer),
		orchestration.WithTranscriptionOptions(transcriptionOptions(cfg.Transcription)...),
		orchestration.WithSilenceTimeout(cfg.Transcription.SilenceTimeout),
		orchestration.WithCaptureConstraints(captureConstraints(cfg.Audio)),
		orchestration.WithHighPassFilter(cfg.Audio.HighPassCutoffHz),
		orchestration.WithVolumeGain(cfg.Audio.VolumeGain),
		orchestration.WithPlaybackBufferDuration(cfg.Playback.BufferDuration),
		orchestration.WithPlaybackStartThreshold(cfg.Playback.StartThreshold),
		orchestration.WithMaxPendingChunks(cfg.Synthesis.MaxPendingChunks),
		orchestration.WithVoiceReferenceID(cfg.Synthesis.VoiceReferenceID),
		orchestration.WithBargeIn(cfg.Playback.BargeIn),
		orchestration.WithMetrics(m),
	}, opts...)

	p.Orchestrator = orchestration.NewOrchestrator(options...)
	p.SetVolume(cfg.Playback.Volume)
	return p, nil
}

func buildTranscriber(cfg config.TranscriptionConfig) speechtotext.Streamer {
	var opts []deepgramstt.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, deepgramstt.WithAPIKey(cfg.APIKey))
	}
	if cfg.ListenURL != "" {
		opts = append(opts, deepgramstt.WithListenURL(cfg.ListenURL))
	}
	return deepgramstt.NewTranscriptionClient(opts...)
}

func transcriptionOptions(cfg config.TranscriptionConfig) []speechtotext.TranscriptionOption {
	return []speechtotext.TranscriptionOption{
		speechtotext.WithModel(cfg.Model),
		speechtotext.WithLanguage(cfg.Language),
		speechtotext.WithKeepAliveInterval(cfg.KeepAliveInterval),
	}
}

func captureConstraints(cfg config.AudioConfig) audio.CaptureConstraints {
	constraints := audio.DefaultCaptureConstraints()
	constraints.SampleRate = cfg.SampleRate
	if cfg.FrameSize > 0 {
		constraints.FrameSize = cfg.FrameSize
	}
	if cfg.EchoCancellation != nil {
		constraints.EchoCancellation = *cfg.EchoCancellation
	}
	if cfg.NoiseSuppression != nil {
		constraints.NoiseSuppression = *cfg.NoiseSuppression
	}
	if cfg.AutoGainControl != nil {
		constraints.AutoGainControl = *cfg.AutoGainControl
	}
	return constraints
}

// buildSynthesizer returns the Deepgram client or a generic streaming
// endpoint, decoding MPEG bodies when configured to.
func buildSynthesizer(cfg config.SynthesisConfig) (texttospeech.Synthesizer, error) {
	encoding := audio.EncodingInfo{SampleRate: cfg.SampleRate, Format: audio.EncodingLinear16}

	switch cfg.Provider {
	case "deepgram":
		opts := []deepgramtts.ClientOption{deepgramtts.WithEncodingInfo(encoding)}
		if cfg.APIKey != "" {
			opts = append(opts, deepgramtts.WithAPIKey(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, deepgramtts.WithSpeakURL(cfg.Endpoint))
		}
		client, err := deepgramtts.NewTextToSpeechClient(deepgramtts.Voice(cfg.Voice), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram synthesizer: %w", err)
		}
		return client, nil

	case "http":
		if cfg.Endpoint == "" {
			return nil, errors.New("synthesis endpoint not configured")
		}
		header := http.Header{}
		if cfg.APIKey != "" {
			header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
		opts := []httpstream.ClientOption{httpstream.WithEncodingInfo(encoding)}
		if cfg.Format == "mpeg" {
			opts = append(opts, httpstream.WithDecoder(mpeg.NewDecoder(cfg.SampleRate)))
		}
		return httpstream.NewClient(cfg.Endpoint, header, opts...), nil
	}

	return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
}
