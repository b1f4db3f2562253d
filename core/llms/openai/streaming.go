package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PromptWithStream prepares a streamed completion of prompt after history.
// The request is sent when the returned stream is ranged over.
func (c *Client) PromptWithStream(prompt string, history ...llms.Message) *Stream {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	for _, message := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return &Stream{
		client: c.client,
		request: openai.ChatCompletionRequest{
			Model:         c.model,
			Messages:      messages,
			Stream:        true,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		},
	}
}

type Stream struct {
	client  *openai.Client
	request openai.ChatCompletionRequest
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream completion")
		defer span.End()
		span.SetAttributes(attribute.String("llm.model", s.request.Model))

		stream, err := s.client.CreateChatCompletionStream(ctx, s.request)
		if err != nil {
			err = fmt.Errorf("failed to start completion stream: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					err = fmt.Errorf("failed to read completion stream: %w", err)
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					logger.Error("completion stream failed", "error", err)
				}
				yield(nil, err)
				return
			}

			if response.Usage != nil {
				span.AddEvent("usage", trace.WithAttributes(
					attribute.Int("llm.input_tokens", response.Usage.PromptTokens),
					attribute.Int("llm.output_tokens", response.Usage.CompletionTokens)))
				if !yield(StreamUsageChunk{usage: llms.Usage{
					InputTokens:  response.Usage.PromptTokens,
					OutputTokens: response.Usage.CompletionTokens,
					TotalTokens:  response.Usage.TotalTokens,
				}}, nil) {
					return
				}
			}

			for _, choice := range response.Choices {
				var finishReason *string
				if choice.FinishReason != "" {
					reason := string(choice.FinishReason)
					finishReason = &reason
				}
				if choice.Delta.Role != "" {
					if !yield(StreamRoleChunk{finishReason: finishReason, role: choice.Delta.Role}, nil) {
						return
					}
				}
				if choice.Delta.Content != "" || finishReason != nil {
					if !yield(StreamContentChunk{finishReason: finishReason, content: choice.Delta.Content}, nil) {
						return
					}
				}
			}
		}
	}
}

type StreamRoleChunk struct {
	finishReason *string
	role         string
}

func (s StreamRoleChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamRoleChunk) Role() string {
	return s.role
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamContentChunk) Content() string {
	return s.content
}

type StreamUsageChunk struct {
	finishReason *string
	usage        llms.Usage
}

func (s StreamUsageChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamUsageChunk) Usage() llms.Usage {
	return s.usage
}

var _ llms.Stream = (*Stream)(nil)
