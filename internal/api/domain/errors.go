package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures into the categories clients can act on.
type Kind int

const (
	KindStorageIO Kind = iota
	KindNotFound
	KindCorrupted
	KindContentRead
	KindTooLarge
	KindBlocked
	KindAccess
	KindInvalidQuery
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindCorrupted:
		return "corrupted"
	case KindContentRead:
		return "content_read"
	case KindTooLarge:
		return "too_large"
	case KindBlocked:
		return "blocked"
	case KindAccess:
		return "access"
	case KindInvalidQuery:
		return "invalid_query"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "storage_io"
	}
}

// Status is the HTTP status code reported for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindContentRead, KindInvalidQuery:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindBlocked, KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type shared by the backends, the facade and the HTTP layer.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "localfs.read".
	Op  string
	Err error
	// Given and Max are set for KindTooLarge.
	Given int64
	Max   int64
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Message is the client-facing description.
func (e *Error) Message() string {
	switch e.Kind {
	case KindNotFound:
		return "The requested file does not exist."
	case KindCorrupted:
		return "The requested file was corrupted on the server and can't be retrieved."
	case KindContentRead:
		return "There was an error transmitting your file over the internet."
	case KindTooLarge:
		return fmt.Sprintf("The file you tried to upload was too large. The maximum file size is %d bytes, but you tried to upload %d bytes.", e.Max, e.Given)
	case KindBlocked:
		return "You are blocked from using this service."
	case KindAccess:
		return "The server failed to create an access URL."
	case KindInvalidQuery:
		return fmt.Sprintf("The requested parameters were invalid: %v.", rootCause(e.Err))
	case KindUnauthorized:
		return "The signed URL is invalid or has expired."
	default:
		return "The storage server failed to process the file."
	}
}

// Status is the HTTP status code for the error.
func (e *Error) Status() int { return e.Kind.Status() }

// Sentinels for errors.Is checks.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrStorageIO    = &Error{Kind: KindStorageIO}
	ErrCorrupted    = &Error{Kind: KindCorrupted}
	ErrContentRead  = &Error{Kind: KindContentRead}
	ErrTooLarge     = &Error{Kind: KindTooLarge}
	ErrBlocked      = &Error{Kind: KindBlocked}
	ErrAccess       = &Error{Kind: KindAccess}
	ErrInvalidQuery = &Error{Kind: KindInvalidQuery}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

func NotFound(op string, err error) *Error { return &Error{Kind: KindNotFound, Op: op, Err: err} }

func StorageIO(op string, err error) *Error { return &Error{Kind: KindStorageIO, Op: op, Err: err} }

func Corrupted(op string, err error) *Error { return &Error{Kind: KindCorrupted, Op: op, Err: err} }

func ContentRead(op string, err error) *Error { return &Error{Kind: KindContentRead, Op: op, Err: err} }

func Access(op string, err error) *Error { return &Error{Kind: KindAccess, Op: op, Err: err} }

func InvalidQuery(op string, err error) *Error { return &Error{Kind: KindInvalidQuery, Op: op, Err: err} }

func Unauthorized(op string, err error) *Error { return &Error{Kind: KindUnauthorized, Op: op, Err: err} }

func Blocked(op string) *Error { return &Error{Kind: KindBlocked, Op: op} }

func TooLarge(op string, given, maxSize int64) *Error {
	return &Error{Kind: KindTooLarge, Op: op, Given: given, Max: maxSize}
}

// AsError returns the *Error in err's chain, wrapping anything else as storage I/O.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return StorageIO("", err)
}

// KindOf reports the kind of err; unclassified errors are storage I/O.
func KindOf(err error) Kind {
	return AsError(err).Kind
}

func rootCause(err error) error {
	if err == nil {
		return errors.New("unknown")
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// IsBackendFailure reports whether err says something about the health of a
// remote store. Missing files and broken client bodies do not.
func IsBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindNotFound, KindContentRead:
		return false
	default:
		return true
	}
}
