package workflow

import (
	"errors"
	"fmt"

	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/records"
)

// Kind classifies a workflow failure for callers.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindInvalidState   Kind = "INVALID_STATE"
	KindConfigNotFound Kind = "CONFIG_NOT_FOUND"
	KindBadRequest     Kind = "BAD_REQUEST"
)

// Error is the only error type returned by workflow operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" when err is not a workflow error.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}

func notFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func badRequest(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...), Err: err}
}

// lookupError converts a failed record lookup.
func lookupError(err error, what, id string) error {
	if errors.Is(err, records.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with ID %s not found", what, id), Err: err}
	}
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf("failed to load %s %s: %v", what, id, err), Err: err}
}

// stepError converts the failure of a saga into the caller-facing error.
// action names what was attempted, e.g. "mint farmer NFT".
func stepError(err error, action string) error {
	switch {
	case errors.Is(err, records.ErrStaleState):
		return &Error{Kind: KindInvalidState, Message: err.Error(), Err: err}
	case errors.Is(err, contract.ErrConfigNotFound):
		return &Error{Kind: KindConfigNotFound, Message: err.Error(), Err: err}
	default:
		return &Error{Kind: KindBadRequest, Message: fmt.Sprintf("failed to %s: %v", action, err), Err: err}
	}
}
