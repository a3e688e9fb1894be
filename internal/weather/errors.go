package weather

import (
	"errors"
	"fmt"
)

// Kind classifies why a lookup failed. It is meant for logs, not for
// branching: callers only see success or failure.
type Kind int

const (
	KindTransport Kind = iota
	KindPlaceNotFound
	KindHTTP
	KindEmptyBody
)

func (k Kind) String() string {
	switch k {
	case KindPlaceNotFound:
		return "place_not_found"
	case KindHTTP:
		return "http_error"
	case KindEmptyBody:
		return "empty_body"
	default:
		return "transport_error"
	}
}

var (
	// ErrEmptyBody is returned by sources when a success response carried no payload.
	ErrEmptyBody = errors.New("empty response body")

	errNoPlace     = errors.New("no matching place")
	errNoCondition = errors.New("no condition summary in response")
)

// StatusError is returned by sources for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d - %s", e.Code, e.Body)
}

// LookupError is the single failure type returned by Service.
type LookupError struct {
	Kind   Kind
	Stage  string // "geocode" or "conditions"
	Status int
	Body   string
	Err    error
}

func (e *LookupError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: %s: status %d: %s", e.Stage, e.Kind, e.Status, e.Body)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a lookup failure, or KindTransport for any
// other non-nil error.
func KindOf(err error) Kind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindTransport
}

// classify turns whatever a source returned into a LookupError.
func classify(stage string, err error) *LookupError {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return &LookupError{Kind: KindHTTP, Stage: stage, Status: se.Code, Body: se.Body, Err: err}
	case errors.Is(err, ErrEmptyBody), errors.Is(err, errNoCondition):
		return &LookupError{Kind: KindEmptyBody, Stage: stage, Err: err}
	case errors.Is(err, errNoPlace):
		return &LookupError{Kind: KindPlaceNotFound, Stage: stage, Err: err}
	default:
		return &LookupError{Kind: KindTransport, Stage: stage, Err: err}
	}
}
