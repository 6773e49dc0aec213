package remote

import (
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindNetwork is a transport failure: DNS, refused connection, timeout.
	KindNetwork Kind = iota
	// KindHTTP is a response with a non-success status.
	KindHTTP
	// KindParse is a response body that could not be decoded.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Store operation that fails.
type Error struct {
	Kind   Kind
	Op     string // "GET /messages/inbox"
	Status int    // set for KindHTTP
	// Message is the server's explanation from the error body, if any.
	Message string
	// Body is the raw response body when it was not a JSON error object.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		detail := e.Message
		if detail == "" {
			detail = e.Body
		}
		if detail == "" {
			detail = http.StatusText(e.Status)
		}
		return fmt.Sprintf("%s: API error (%d): %s", e.Op, e.Status, detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Reason returns the server-provided explanation, empty when there is none.
func (e *Error) Reason() string { return e.Message }
