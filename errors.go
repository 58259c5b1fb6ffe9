package devtoolkit

import (
	"errors"

	"github.com/ankushjain358/dev-toolkit/slug"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another member.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSlug is returned when a write hits the unique slug index.
	ErrDuplicateSlug = errors.New("slug already taken")
)

// ValidationError reports a user input problem. Message is shown to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// userMessage turns err into text that can be shown to a member.
func userMessage(err error) string {
	if ve, ok := IsValidation(err); ok {
		return ve.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Blog not found"
	case errors.Is(err, ErrDuplicateSlug):
		return "Another post with this title was saved at the same time. Please try again."
	case errors.Is(err, slug.ErrProbe), errors.Is(err, slug.ErrExhausted):
		return "Could not check the post URL right now. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
