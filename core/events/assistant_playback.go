package events

const (
	// KindAssistantPlaybackStarted identifies playback start for a playback session.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackStateChanged identifies playback buffer state transitions.
	KindAssistantPlaybackStateChanged Kind = "assistant_playback.state_changed"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of playback.
type AssistantPlaybackStarted struct{ Base }

// NewAssistantPlaybackStarted creates a playback started event.
func NewAssistantPlaybackStarted(sessionID string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted, sessionID)}
}

// AssistantPlaybackStateChanged carries the new playback state, one of idle,
// buffering, speaking or paused.
type AssistantPlaybackStateChanged struct {
	Base
	State string
}

// NewAssistantPlaybackStateChanged creates a playback state changed event.
func NewAssistantPlaybackStateChanged(sessionID, state string) AssistantPlaybackStateChanged {
	return AssistantPlaybackStateChanged{Base: NewBase(KindAssistantPlaybackStateChanged, sessionID), State: state}
}

// AssistantPlaybackEnded marks playback draining after input completed.
type AssistantPlaybackEnded struct{ Base }

// NewAssistantPlaybackEnded creates a playback ended event.
func NewAssistantPlaybackEnded(sessionID string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded, sessionID)}
}
