package git

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the boundary layer
type Kind int

const (
	// KindNoRepository means no tracked root is set or the location is not a repository
	KindNoRepository Kind = iota + 1
	// KindUnderlying means git itself reported a fault
	KindUnderlying
	// KindIo means a plain filesystem failure outside the object store
	KindIo
	// KindInvalidInput means a precondition on the caller's input failed
	KindInvalidInput
	// KindWatchFailure means the filesystem watcher could not be armed
	KindWatchFailure
)

func (k Kind) String() string {
	switch k {
	case KindNoRepository:
		return "no_repository"
	case KindUnderlying:
		return "underlying"
	case KindIo:
		return "io"
	case KindInvalidInput:
		return "invalid_input"
	case KindWatchFailure:
		return "watch_failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrNoRepository = errors.New("git repository is not available")
	ErrUnderlying   = errors.New("git failure")
	ErrIo           = errors.New("filesystem failure")
	ErrInvalidInput = errors.New("invalid input")
	ErrWatchFailure = errors.New("watch failure")
)

// Error is the typed error returned by every operation in this package
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoRepository:
		return e.Kind == KindNoRepository
	case ErrUnderlying:
		return e.Kind == KindUnderlying
	case ErrIo:
		return e.Kind == KindIo
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrWatchFailure:
		return e.Kind == KindWatchFailure
	}
	return false
}

func noRepository(op string, err error) *Error {
	return &Error{Kind: KindNoRepository, Op: op, Err: err}
}

func underlying(op string, err error) *Error {
	return &Error{Kind: KindUnderlying, Op: op, Err: err}
}

func ioFailure(op string, err error) *Error {
	return &Error{Kind: KindIo, Op: op, Err: err}
}

func invalidInput(op, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: msg}
}

// NotDetected reports that op needs a tracked repository but none is set
func NotDetected(op string) *Error {
	return &Error{Kind: KindNoRepository, Op: op, Msg: "Git repository is not detected yet"}
}

// WatchFailure wraps a watcher error so callers can classify it
func WatchFailure(op string, err error) *Error {
	return &Error{Kind: KindWatchFailure, Op: op, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not a *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Message converts err into the user-facing message shown by the CLI and
// the HTTP surface.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindNoRepository:
		if e.Msg != "" {
			return e.Msg
		}
		return "Git repository is not available"
	case KindInvalidInput:
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}
