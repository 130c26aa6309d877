package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx API response
type Error struct {
	Status int    `json:"-"`
	Msg    string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("status: %d, error: %s", e.Status, e.Msg)
}

// NewError creates a new error
func NewError(status int, msg string) *Error {
	return &Error{Status: status, Msg: msg}
}

func decodeError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if err := json.Unmarshal(body, e); err != nil || e.Msg == "" {
		e.Msg = http.StatusText(status)
	}
	return e
}

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsRateLimited reports whether err is a 429 from the server
func IsRateLimited(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// IsUnauthorized reports whether the token was missing, invalid or expired
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether the target user does not exist
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}
