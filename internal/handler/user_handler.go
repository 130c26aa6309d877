package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/campuschat/internal/middleware"
	"github.com/mbeoliero/campuschat/internal/service"
	"github.com/mbeoliero/campuschat/pkg/errcode"
	"github.com/mbeoliero/campuschat/pkg/response"
)

// UserHandler handles user-related requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe handles GET /api/users/me
func (h *UserHandler) GetMe(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "", userInfo)
}

// GetUserById handles GET /api/users/:userId
func (h *UserHandler) GetUserById(ctx context.Context, c *app.RequestContext) {
	userId, ok := pathUserId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.WithMsg("invalid user id"))
		return
	}

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "", userInfo)
}
