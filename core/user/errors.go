package user

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrRoleMismatch      = errors.New("role mismatch")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrLoginIDExists     = errors.New("a user with this id already exists")
)

// AuthError is returned by Login. Err is one of ErrNotFound, ErrRoleMismatch,
// ErrInvalidCredential or a backend failure.
type AuthError struct {
	Identifier  string
	ClaimedRole Role
	Err         error
}

func (e *AuthError) Error() string {
	return "Failed to login: " + e.Message()
}

// Message is the user-facing reason of the failure.
func (e *AuthError) Message() string {
	switch errors.Cause(e.Err) {
	case ErrNotFound:
		return "User not found with this ID."
	case ErrRoleMismatch:
		return fmt.Sprintf("This account is not registered as a %s.", e.ClaimedRole)
	case ErrInvalidCredential:
		return "Incorrect password."
	}
	return "the service is unavailable, please try again later."
}

func (e *AuthError) Unwrap() error { return e.Err }
