package events

const (
	// KindAssistantSpeechLoadingChanged identifies synthesis loading transitions.
	KindAssistantSpeechLoadingChanged Kind = "assistant_speech.loading_changed"
	// KindAssistantSpeechChunkSynthesized identifies a fully appended chunk.
	KindAssistantSpeechChunkSynthesized Kind = "assistant_speech.chunk_synthesized"
)

// AssistantSpeechLoadingChanged reports whether synthesis work is pending or
// in flight.
type AssistantSpeechLoadingChanged struct {
	Base
	Loading bool
}

// NewAssistantSpeechLoadingChanged creates a synthesis loading event.
func NewAssistantSpeechLoadingChanged(sessionID string, loading bool) AssistantSpeechLoadingChanged {
	return AssistantSpeechLoadingChanged{Base: NewBase(KindAssistantSpeechLoadingChanged, sessionID), Loading: loading}
}

// AssistantSpeechChunkSynthesized reports the text of a chunk whose audio was
// appended in full.
type AssistantSpeechChunkSynthesized struct {
	Base
	Index int
	Text  string
	Bytes int
}

// NewAssistantSpeechChunkSynthesized creates a chunk synthesized event.
func NewAssistantSpeechChunkSynthesized(sessionID string, index int, text string, bytes int) AssistantSpeechChunkSynthesized {
	return AssistantSpeechChunkSynthesized{
		Base:  NewBase(KindAssistantSpeechChunkSynthesized, sessionID),
		Index: index,
		Text:  text,
		Bytes: bytes,
	}
}
