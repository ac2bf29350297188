package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// StatusError is a failed remote call
type StatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("store request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an authentication or permission failure
func IsAuthError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

// UserMessage renders err for the operator
func UserMessage(err error, action string) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return "Authentication failed. Please check service account configuration."
		case http.StatusForbidden:
			return "Permission denied. Check Firestore security rules."
		}
	}
	return fmt.Sprintf("Failed to %s: %v", action, err)
}
