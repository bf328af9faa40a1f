package snip

import (
	"errors"
	"fmt"
	"log/slog"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger = slog.Default()

// ErrorKind classifies why a document failed to load, render or capture.
// Kinds are mutually exclusive; every failure maps to exactly one.
type ErrorKind int

const (
	// ErrEmptyDocument means the payload had zero length
	ErrEmptyDocument ErrorKind = iota
	// ErrInvalidFormat means the bytes do not parse as a PDF
	ErrInvalidFormat
	// ErrOversizedPayload means a local file exceeded the size ceiling
	ErrOversizedPayload
	// ErrNetworkFailure means a remote fetch could not complete
	ErrNetworkFailure
	// ErrNotFound means the remote fetch returned a not-found status
	ErrNotFound
	// ErrServerError means the remote fetch returned another non-success status
	ErrServerError
	// ErrRenderFailure means parsing succeeded but rasterizing a page failed
	ErrRenderFailure
	// ErrNoSelection means capture was attempted without a selection rectangle
	ErrNoSelection
)

func (k ErrorKind) String() string {
	switch k {
	case ErrEmptyDocument:
		return "EmptyDocument"
	case ErrInvalidFormat:
		return "InvalidFormat"
	case ErrOversizedPayload:
		return "OversizedPayload"
	case ErrNetworkFailure:
		return "NetworkFailure"
	case ErrNotFound:
		return "NotFound"
	case ErrServerError:
		return "ServerError"
	case ErrRenderFailure:
		return "RenderFailure"
	case ErrNoSelection:
		return "NoSelection"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// UserMessage returns the user-facing message for this kind of failure
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrEmptyDocument:
		return "The selected document is empty."
	case ErrInvalidFormat:
		return "The document could not be read as a PDF."
	case ErrOversizedPayload:
		return "The selected file is too large."
	case ErrNetworkFailure:
		return "The document could not be fetched. Check your connection and try again."
	case ErrNotFound:
		return "The document was not found."
	case ErrServerError:
		return "The document server returned an error."
	case ErrRenderFailure:
		return "This page could not be rendered. Try another page."
	case ErrNoSelection:
		return "Select a region of the page before snipping."
	default:
		return "Something went wrong."
	}
}

// Error is a classified failure from the snipping subsystem
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error returned by this package
func KindOf(err error) (ErrorKind, bool) {
	var snipErr *Error
	if errors.As(err, &snipErr) {
		return snipErr.Kind, true
	}
	return 0, false
}
