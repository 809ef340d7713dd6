package model

import (
	"errors"
	"fmt"
)

// Kind classifies failures that are surfaced to the user.
type Kind int

const (
	// KindNotFound is a missing file at play or delete time.
	KindNotFound Kind = iota + 1
	// KindInvalidState is an operation called out of turn (pause while idle).
	KindInvalidState
	// KindDevice is a load/play/capture rejected by the audio subsystem.
	KindDevice
	// KindLockedResource is a delete blocked by an open handle.
	KindLockedResource
	// KindIO is a write failure during save or import.
	KindIO
	// KindEmptyInput is a save with no recorded data or a blank name.
	KindEmptyInput
)

var kindNames = map[Kind]string{
	KindNotFound:       "not found",
	KindInvalidState:   "invalid state",
	KindDevice:         "device error",
	KindLockedResource: "resource locked",
	KindIO:             "i/o error",
	KindEmptyInput:     "empty input",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
	ErrDevice         = &Error{Kind: KindDevice}
	ErrLockedResource = &Error{Kind: KindLockedResource}
	ErrIO             = &Error{Kind: KindIO}
	ErrEmptyInput     = &Error{Kind: KindEmptyInput}
)

// Error is a classified, user-visible failure.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "play", "delete"
	Path string // file involved, if any
	Msg  string // short explanation when Err is nil
	Err  error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf creates an Error of the given kind with a formatted message and no cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
