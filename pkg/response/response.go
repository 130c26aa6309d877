package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/campuschat/pkg/errcode"
)

// Response represents a standard success response
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success sends a 200 response
func Success(ctx context.Context, c *app.RequestContext, msg string, data interface{}) {
	if msg == "" {
		msg = "success"
	}
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: msg,
		Data:    data,
	})
}

// Created sends a 201 response
func Created(ctx context.Context, c *app.RequestContext, msg string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: msg,
		Data:    data,
	})
}

// Error sends an error response. Errors that are not *errcode.Error are
// logged and reported as an opaque internal error.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e := errcode.From(err)
	if e == errcode.ErrInternalServer && err != errcode.ErrInternalServer {
		log.CtxError(ctx, "unexpected error: path=%s, error=%v", c.Path(), err)
	}
	ErrorWithCode(ctx, c, e)
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := e.Msg
	if status == http.StatusInternalServerError {
		msg = errcode.ErrInternalServer.Msg
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
