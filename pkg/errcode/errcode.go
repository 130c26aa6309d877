package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a business error
type Error struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Status int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code, message and HTTP status
func New(code int, msg string, status int) *Error {
	return &Error{Code: code, Msg: msg, Status: status}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code:   e.Code,
		Msg:    fmt.Sprintf("%s: %v", e.Msg, err),
		Status: e.Status,
	}
}

// WithMsg returns a copy of e carrying a more specific message
func (e *Error) WithMsg(msg string) *Error {
	return &Error{Code: e.Code, Msg: msg, Status: e.Status}
}

// Is reports whether target carries the same code, so wrapped copies match their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// From extracts an *Error from err, falling back to ErrInternalServer
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer
}

// Common error codes
var (
	// Common errors (1xxx)
	ErrInvalidParam    = New(1001, "invalid parameter", http.StatusBadRequest)
	ErrInternalServer  = New(1002, "internal server error", http.StatusInternalServerError)
	ErrUnauthorized    = New(1003, "unauthorized", http.StatusUnauthorized)
	ErrForbidden       = New(1004, "forbidden", http.StatusForbidden)
	ErrNotFound        = New(1005, "not found", http.StatusNotFound)
	ErrTooManyRequests = New(1006, "too many requests, please try again later", http.StatusTooManyRequests)
	ErrConflict        = New(1008, "conflict", http.StatusConflict)

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid", http.StatusUnauthorized)
	ErrTokenExpired  = New(2002, "token expired", http.StatusUnauthorized)
	ErrTokenMissing  = New(2003, "token missing", http.StatusUnauthorized)
	ErrLoginFailed   = New(2005, "invalid username or password", http.StatusUnauthorized)
	ErrUserNotFound  = New(2006, "user not found", http.StatusNotFound)
	ErrUserExists    = New(2007, "username already taken", http.StatusConflict)
	ErrPasswordShort = New(2009, "password must be at least 6 characters", http.StatusBadRequest)

	// Chat errors (4xxx)
	ErrReceiverRequired = New(4001, "receiver id is required", http.StatusBadRequest)
	ErrEmptyMessage     = New(4002, "message content is required", http.StatusBadRequest)
	ErrSelfMessage      = New(4003, "cannot send a message to yourself", http.StatusBadRequest)
	ErrSelfHistory      = New(4004, "cannot load a conversation with yourself", http.StatusBadRequest)
	ErrReceiverNotFound = New(4005, "receiver not found", http.StatusNotFound)
	ErrPeerNotFound     = New(4006, "user not found", http.StatusNotFound)
	ErrSendFailed       = New(4007, "failed to send message", http.StatusInternalServerError)
	ErrHistoryFailed    = New(4008, "failed to load chat history", http.StatusInternalServerError)
)
