package spotify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransientFetch wraps network failures and malformed upstream payloads.
	// Poll loops absorb it via backoff.
	ErrTransientFetch = errors.New("transient fetch error")
)

// ConfigurationError reports credential inputs that are missing. No network
// call is attempted when it is returned.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// AuthError reports a token exchange rejected by the accounts service.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh failed: status %d: %s", e.Status, e.Body)
}
