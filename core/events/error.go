package events

const KindError Kind = "pipeline.error"

// Error carries a failure surfaced by the pipeline. Source names the
// component that failed, for example capture, transcription or synthesis.
type Error struct {
	Base
	Source string
	Err    error
}

func NewError(sessionID, source string, err error) Error {
	return Error{Base: NewBase(KindError, sessionID), Source: source, Err: err}
}

func (e Error) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}
