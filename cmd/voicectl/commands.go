package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/llms/openai"
	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/koscakluka/ema-voice/internal/metrics"
)

func logErrorEvent(err events.Error) {
	slog.Error("pipeline error", "source", err.Source, "session_id", err.SessionID(), "error", err.Err)
}

func listen(ctx context.Context, cfg *config.Config, m *metrics.Metrics, out io.Writer) error {
	p, err := newPipeline(cfg, m,
		orchestration.WithTranscriptionCallback(func(transcript string) {
			fmt.Fprintln(out, transcript)
		}),
		orchestration.WithErrorCallback(logErrorEvent),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Start(ctx); err != nil {
		return err
	}
	slog.Info("listening, interrupt to stop")
	<-ctx.Done()
	return p.Stop()
}

// speak returns once the utterance has been played, or on the first
// synthesis or playback failure.
func speak(ctx context.Context, cfg *config.Config, m *metrics.Metrics, text string) error {
	ended := make(chan struct{}, 1)
	failed := make(chan error, 1)
	p, err := newPipeline(cfg, m,
		orchestration.WithPlaybackEndedCallback(func() {
			select {
			case ended <- struct{}{}:
			default:
			}
		}),
		orchestration.WithErrorCallback(func(err events.Error) {
			logErrorEvent(err)
			select {
			case failed <- err:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Speak(ctx, text); err != nil {
		return err
	}
	select {
	case <-ended:
		return nil
	case err := <-failed:
		return err
	case <-ctx.Done():
		return p.StopSpeaking()
	}
}

// chat answers every completed utterance with a streamed LLM reply. Replies
// are spoken one at a time; barge-in cuts the current one short.
func chat(ctx context.Context, cfg *config.Config, m *metrics.Metrics, out io.Writer) error {
	llmOpts := []openai.ClientOption{
		openai.WithModel(cfg.LLM.Model),
		openai.WithSystemPrompt(cfg.LLM.SystemPrompt),
	}
	if cfg.LLM.APIKey != "" {
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	llm, err := openai.NewClient(llmOpts...)
	if err != nil {
		return err
	}

	utterances := make(chan string, 8)
	p, err := newPipeline(cfg, m,
		orchestration.WithTranscriptionCallback(func(transcript string) {
			select {
			case utterances <- transcript:
			default:
				slog.Warn("dropping utterance while a reply is pending", "transcript", transcript)
			}
		}),
		orchestration.WithErrorCallback(logErrorEvent),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Start(ctx); err != nil {
		return err
	}
	slog.Info("chatting", "model", llm.Model())

	var history []llms.Message
	for {
		select {
		case <-ctx.Done():
			return p.Stop()
		case utterance := <-utterances:
			fmt.Fprintf(out, "you: %s\n", utterance)

			reply, err := p.SpeakStream(ctx, llm.PromptWithStream(utterance, history...))
			if err != nil {
				slog.Error("failed to answer", "error", err)
				continue
			}
			fmt.Fprintf(out, "assistant: %s\n", reply)

			history = append(history,
				llms.Message{Role: llms.MessageRoleUser, Content: utterance},
				llms.Message{Role: llms.MessageRoleAssistant, Content: reply},
			)
		}
	}
}
