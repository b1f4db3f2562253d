package events

const (
	KindCaptureStateChanged      Kind = "capture.state_changed"
	KindCaptureConnectionChanged Kind = "capture.connection_changed"
	KindCaptureMuteChanged       Kind = "capture.mute_changed"
	KindCaptureVolumeUpdated     Kind = "capture.volume_updated"
)

// CaptureStateChanged reports a capture session state transition. State is
// one of idle, starting, listening or stopping.
type CaptureStateChanged struct {
	Base
	State string
}

func NewCaptureStateChanged(sessionID, state string) CaptureStateChanged {
	return CaptureStateChanged{Base: NewBase(KindCaptureStateChanged, sessionID), State: state}
}

type CaptureConnectionChanged struct {
	Base
	Connected bool
}

func NewCaptureConnectionChanged(sessionID string, connected bool) CaptureConnectionChanged {
	return CaptureConnectionChanged{Base: NewBase(KindCaptureConnectionChanged, sessionID), Connected: connected}
}

type CaptureMuteChanged struct {
	Base
	Muted bool
}

func NewCaptureMuteChanged(sessionID string, muted bool) CaptureMuteChanged {
	return CaptureMuteChanged{Base: NewBase(KindCaptureMuteChanged, sessionID), Muted: muted}
}

// CaptureVolumeUpdated carries the normalized input level of the latest
// frame.
type CaptureVolumeUpdated struct {
	Base
	Level float64
}

func NewCaptureVolumeUpdated(sessionID string, level float64) CaptureVolumeUpdated {
	return CaptureVolumeUpdated{Base: NewBase(KindCaptureVolumeUpdated, sessionID), Level: level}
}
