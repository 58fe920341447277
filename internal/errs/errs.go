// Package errs defines the closed set of failures the poller can produce.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	// Transport is a network or timeout failure
	Transport Kind = iota + 1
	// RequestFailed is a response outside the 2xx range
	RequestFailed
	// Decode is a malformed or unexpected response body
	Decode
	// InvalidTokenLifetime is a token reply with a negative expires_in
	InvalidTokenLifetime
	// AuthorizationIncomplete means the consent flow ended without a code
	AuthorizationIncomplete
	// StateMismatch is a callback whose state does not match the issued one
	StateMismatch
	// SynchronizationFault is a callback that could not be recorded
	SynchronizationFault
	// ListenerBindFailure means the local callback port could not be opened
	ListenerBindFailure
	// InvalidConfig is malformed configuration, including URL construction
	InvalidConfig
	// BrowserOpen means the consent URL could not be opened on the host
	BrowserOpen
)

var kindNames = map[Kind]string{
	Transport:               "transport error",
	RequestFailed:           "request failed",
	Decode:                  "decode error",
	InvalidTokenLifetime:    "invalid token lifetime",
	AuthorizationIncomplete: "authorization incomplete",
	StateMismatch:           "state mismatch",
	SynchronizationFault:    "synchronization fault",
	ListenerBindFailure:     "listener bind failure",
	InvalidConfig:           "invalid configuration",
	BrowserOpen:             "browser open failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Status and Body are set for RequestFailed,
// Lifetime for InvalidTokenLifetime.
type Error struct {
	Kind     Kind
	Op       string
	Status   int
	Body     string
	Lifetime int64
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	switch e.Kind {
	case RequestFailed:
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	case InvalidTokenLifetime:
		msg = fmt.Sprintf("%s: expires_in=%d", msg, e.Lifetime)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind so that errors.Is(err, &Error{Kind: k}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// New returns an error of the given kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Failed returns a RequestFailed error for a non-2xx response
func Failed(op string, status int, body string) *Error {
	return &Error{Kind: RequestFailed, Op: op, Status: status, Body: body}
}

// Lifetime returns an InvalidTokenLifetime error
func Lifetime(op string, expiresIn int64) *Error {
	return &Error{Kind: InvalidTokenLifetime, Op: op, Lifetime: expiresIn}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Reportable reports whether err may be logged and skipped by a poll cycle.
// Only per-request failures qualify; anything else ends the run.
func Reportable(err error) bool {
	switch KindOf(err) {
	case Transport, RequestFailed, Decode:
		return true
	}
	return false
}
