package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrNotFound     = fmt.Errorf("not found")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrTransient    = fmt.Errorf("transient dependency failure")

	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrChatNotFound       = fmt.Errorf("chat %w", ErrNotFound)
	ErrMessageNotFound    = fmt.Errorf("message %w", ErrNotFound)
	ErrParticipantMissing = fmt.Errorf("participant %w", ErrNotFound)
	ErrNotAParticipant    = fmt.Errorf("%w: user is not a participant of this chat", ErrUnauthorized)
	ErrNotRegistered      = fmt.Errorf("%w: connection has not joined as a user", ErrUnauthorized)
	ErrUserAlreadyExists  = fmt.Errorf("%w: user already exists", ErrInvalidInput)
	ErrAlreadyParticipant = fmt.Errorf("%w: user is already a participant", ErrInvalidInput)
)

// Kind is the coarse error taxonomy reported to connections.
type Kind int

const (
	KindTransient Kind = iota
	KindInvalidInput
	KindNotFound
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	default:
		return "TransientDependencyFailure"
	}
}

// KindOf classifies err. Anything that is not explicitly one of the caller
// errors is treated as a failing dependency.
func KindOf(err error) Kind {
	switch {
	case stderrors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case stderrors.Is(err, ErrNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindTransient
	}
}

// IsCallerError reports whether err is the caller's fault rather than a dependency failure.
func IsCallerError(err error) bool {
	return err != nil && KindOf(err) != KindTransient
}

// Invalid wraps a validation failure so that it classifies as KindInvalidInput.
func Invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// Transient wraps a dependency failure, keeping caller errors untouched.
func Transient(op string, err error) error {
	if IsCallerError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
