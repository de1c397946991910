package meetdex

import (
	"errors"
	"fmt"
)

// ErrNotFound matches 404 responses. Use errors.Is().
var ErrNotFound = errors.New("not found")

// ErrUnauthorized matches 401 responses. Use errors.Is().
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meetdex: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrUnauthorized:
		return e.StatusCode == 401
	}
	return false
}
