package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorage wraps any failure of the user store, including timeouts.
	ErrStorage = errors.New("storage unavailable")
)

// ValidationError describes a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Public messages. They are safe to return to any client.
const (
	MsgRegistered         = "Registered successfully!"
	MsgLoggedIn           = "Login successful"
	MsgDuplicateEmail     = "Email already registered"
	MsgInvalidCredentials = "Invalid credentials"
	MsgStorageFailure     = "Service temporarily unavailable, please try again later"
	MsgInternal           = "Something went wrong, please try again later"
)

// PublicMessage returns the client-facing message for err. Unknown and
// storage errors collapse into generic text so no internal detail leaks.
func PublicMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrDuplicateEmail):
		return MsgDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, ErrStorage):
		return MsgStorageFailure
	default:
		return MsgInternal
	}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
