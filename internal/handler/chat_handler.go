package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/campuschat/internal/middleware"
	"github.com/mbeoliero/campuschat/internal/service"
	"github.com/mbeoliero/campuschat/pkg/errcode"
	"github.com/mbeoliero/campuschat/pkg/response"
)

// ChatHandler handles direct message requests
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SendMessage handles POST /api/chat/send
func (h *ChatHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.chatService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, "Message sent successfully", msg)
}

// GetHistory handles GET /api/chat/history/:userId
func (h *ChatHandler) GetHistory(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	peer, ok := pathUserId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.WithMsg("invalid user id"))
		return
	}
	page, limit := pageQuery(c)

	result, err := h.chatService.GetHistory(ctx, userId, peer, page, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "Chat history retrieved successfully", result)
}

// ListConversations handles GET /api/chat/conversations
func (h *ChatHandler) ListConversations(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	page, limit := pageQuery(c)
	result, err := h.chatService.ListConversations(ctx, userId, page, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "Conversations retrieved successfully", result)
}

// GetUnreadCount handles GET /api/chat/unread-count
func (h *ChatHandler) GetUnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.chatService.GetUnreadCount(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "Unread count retrieved successfully", map[string]int64{
		"unread_count": count,
	})
}

// MarkRead handles POST /api/chat/read/:userId
func (h *ChatHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	peer, ok := pathUserId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam.WithMsg("invalid user id"))
		return
	}

	marked, err := h.chatService.MarkRead(ctx, userId, peer)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, "Messages marked as read", map[string]int64{
		"marked": marked,
	})
}

func pathUserId(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageQuery reads page and limit; malformed values fall back to defaults
// downstream.
func pageQuery(c *app.RequestContext) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}
