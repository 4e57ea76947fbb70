package session

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for session IDs that cannot be used in a URL path.
var ErrInvalidID = errors.New("invalid session id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ResolveID returns id when it is a valid session ID, or a fresh UUID when
// id is empty. Session IDs become a path segment of the transport URL, so
// they are limited to letters, digits and dashes.
func ResolveID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w %q: want 1-64 letters, digits or dashes", ErrInvalidID, id)
	}
	return id, nil
}
