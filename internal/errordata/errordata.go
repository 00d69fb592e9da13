package errordata

import (
	"errors"
)

// Error taxonomy shared by the engine, the dispatch layer and the pipeline.
// NotFound deliberately covers both "absent" and "not yours".
var (
	ErrNotFound            = errors.New("not found")
	ErrPrecondition        = errors.New("precondition failed")
	ErrConflict            = errors.New("conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timeout")
	ErrInvalidInput        = errors.New("invalid input")
)

// Kind names the taxonomy bucket of err, or "internal" when it has none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

// Phrase turns an engine failure into something safe to say to a caller.
func Phrase(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "not_found":
		return "I couldn't find that. Please check the details and try again."
	case "precondition":
		return "Please identify the user first before continuing."
	case "conflict":
		return "I'm sorry, that time slot is no longer available. Would you like to try a different time?"
	case "invalid_input":
		return "I didn't quite catch that in a format I can use. Could you say it again?"
	case "timeout", "upstream_unavailable":
		return "I'm having trouble reaching our scheduling system right now. Please try again in a moment."
	default:
		return "I'm sorry, something went wrong on our side. Please try again."
	}
}
