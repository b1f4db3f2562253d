package events

const (
	// KindUserSpeechStarted identifies provider-detected speech activity.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserTranscriptInterimUpdated identifies interim transcript snapshots.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptSegment identifies finalized transcript segments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the complete utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserSpeechStarted marks the provider detecting speech.
type UserSpeechStarted struct{ Base }

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted(sessionID string) UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted, sessionID)}
}

// UserTranscriptInterimUpdated carries the current interim transcript.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates an interim transcript updated event.
func NewUserTranscriptInterimUpdated(sessionID, transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated, sessionID), Transcript: transcript}
}

// UserTranscriptSegment carries one finalized segment together with the
// utterance text accumulated so far.
type UserTranscriptSegment struct {
	Base
	Segment    string
	Transcript string
}

// NewUserTranscriptSegment creates a transcript segment event.
func NewUserTranscriptSegment(sessionID, segment, transcript string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment, sessionID), Segment: segment, Transcript: transcript}
}

// UserTranscriptFinal carries the utterance emitted at utterance end.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(sessionID, transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal, sessionID), Transcript: transcript}
}
