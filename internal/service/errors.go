package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Failure taxonomy of the authentication core.  Handlers translate these
// into HTTP status codes; nothing here knows about HTTP.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("the provided credentials are incorrect")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidLink        = errors.New("invalid verification link")
	// ErrInvalidToken means the presented bearer value never existed, was
	// revoked, or is malformed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated is raised by guards when no principal is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenExpired is raised by guards for a token that resolved but is
	// past its expiry.  It is kept apart from ErrInvalidToken on purpose.
	ErrTokenExpired = errors.New("token expired")
	// ErrMissingAbility is raised by guards when a valid token lacks the
	// ability a route requires.
	ErrMissingAbility = errors.New("token lacks the required ability")
)

// ValidationError carries field-level messages, keyed by request field.
type ValidationError struct {
	Fields map[string][]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.FirstMessage()
}

// FirstMessage returns the first message of the alphabetically first field,
// giving a stable summary for the response body.
func (e *ValidationError) FirstMessage() string {
	if len(e.Fields) == 0 {
		return "The given data was invalid."
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := e.Fields[keys[0]]
	if len(msgs) == 0 {
		return "The given data was invalid."
	}
	return strings.TrimSpace(msgs[0])
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// FromValidation converts ozzo field errors into a ValidationError.
// Anything else is returned unchanged.
func FromValidation(err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string][]string, len(fields))}
	for name, fe := range fields {
		if fe == nil {
			continue
		}
		ve.Fields[name] = []string{fe.Error()}
	}
	return ve
}
