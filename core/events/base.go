package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// SessionID identifies the capture or playback session the event belongs
	// to. It is empty for events raised outside a session.
	SessionID() string
}

type Base struct {
	kind      Kind
	timestamp time.Time
	sessionID string
}

func NewBase(kind Kind, sessionID string) Base {
	return Base{kind: kind, timestamp: time.Now(), sessionID: sessionID}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) SessionID() string {
	return b.sessionID
}
