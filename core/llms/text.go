package llms

import (
	"context"
	"strings"
)

// ContentText ranges over a stream and calls onText with every non-empty
// content delta, in order. It returns the full text that was received and
// the first error the stream reported.
func ContentText(ctx context.Context, stream Stream, onText func(text string) error) (string, error) {
	var full strings.Builder
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return full.String(), err
		}
		content, ok := chunk.(StreamContentChunk)
		if !ok || content.Content() == "" {
			continue
		}
		full.WriteString(content.Content())
		if onText != nil {
			if err := onText(content.Content()); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}
