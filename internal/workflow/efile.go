package workflow

import (
	"strings"
	"unicode/utf8"

	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

// MaxEfileLength bounds the E-Office file number.
const MaxEfileLength = 100

// ResolveEfileNo returns the file number a transition should leave on the head.
// A value already on the head wins; an incoming value that differs from it is an edit and is rejected.
func ResolveEfileNo(existing, incoming string, required bool) (string, error) {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)

	if existing != "" {
		if incoming != "" && incoming != existing {
			return "", appErrors.Clone(appErrors.ErrInvalidPayload, "E-Office File No is already set. Editing is not allowed.")
		}
		return existing, nil
	}
	if incoming == "" {
		if required {
			return "", appErrors.Clone(appErrors.ErrInvalidPayload, "E-Office File No is required.")
		}
		return "", nil
	}
	if utf8.RuneCountInString(incoming) > MaxEfileLength {
		return "", appErrors.Clone(appErrors.ErrInvalidPayload, "E-Office File No is too long.")
	}
	return incoming, nil
}
