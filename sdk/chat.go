package sdk

import (
	"context"
	"net/url"
	"strconv"
)

// SendMessage sends a text message to receiverId
func (c *Client) SendMessage(ctx context.Context, receiverId int64, text string) (*Message, error) {
	var result Message
	req := &SendMessageRequest{ReceiverId: receiverId, Message: text}
	if err := c.post(ctx, "/api/chat/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHistory loads one page of the conversation with peerId. The server marks
// the peer's messages read as a side effect. Zero page or limit uses the
// server default.
func (c *Client) GetHistory(ctx context.Context, peerId int64, page, limit int) (*HistoryPage, error) {
	var result HistoryPage
	if err := c.get(ctx, "/api/chat/history/"+strconv.FormatInt(peerId, 10), pageParams(page, limit), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConversations loads one page of the conversation list
func (c *Client) GetConversations(ctx context.Context, page, limit int) (*ConversationPage, error) {
	var result ConversationPage
	if err := c.get(ctx, "/api/chat/conversations", pageParams(page, limit), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUnreadCount returns the number of unread messages addressed to the caller
func (c *Client) GetUnreadCount(ctx context.Context) (int64, error) {
	var result UnreadCountResponse
	if err := c.get(ctx, "/api/chat/unread-count", nil, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

// MarkRead marks every message from peerId to the caller as read
func (c *Client) MarkRead(ctx context.Context, peerId int64) (int64, error) {
	var result MarkReadResponse
	if err := c.post(ctx, "/api/chat/read/"+strconv.FormatInt(peerId, 10), nil, &result); err != nil {
		return 0, err
	}
	return result.Marked, nil
}

func pageParams(page, limit int) url.Values {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}
