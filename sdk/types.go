package sdk

import "encoding/json"

// Response represents the standard success envelope
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UserInfo represents public user info
type UserInfo struct {
	Id        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt int64     `json:"expires_at"`
	User      *UserInfo `json:"user"`
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ReceiverId int64  `json:"receiverId"`
	Message    string `json:"message"`
}

// Message is one direct message as returned by the server
type Message struct {
	Id               int64  `json:"id"`
	SenderId         int64  `json:"sender_id"`
	ReceiverId       int64  `json:"receiver_id"`
	Message          string `json:"message"`
	MessageType      string `json:"message_type"`
	IsRead           bool   `json:"is_read"`
	CreatedAt        int64  `json:"created_at"`
	SenderUsername   string `json:"sender_username"`
	ReceiverUsername string `json:"receiver_username"`
}

// Pagination describes where a page sits in the full result
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// HistoryPage is one page of a conversation, oldest message first
type HistoryPage struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// Conversation is one row of the conversation list
type Conversation struct {
	PeerId         int64  `json:"peer_id"`
	PeerUsername   string `json:"peer_username"`
	LastMessageId  int64  `json:"last_message_id"`
	LastMessage    string `json:"last_message"`
	LastSenderId   int64  `json:"last_sender_id"`
	LastActivityAt int64  `json:"last_activity_at"`
	UnreadCount    int64  `json:"unread_count"`
}

// ConversationPage is one page of the conversation list
type ConversationPage struct {
	Conversations []*Conversation `json:"conversations"`
	Pagination    Pagination      `json:"pagination"`
}

// UnreadCountResponse represents unread count response
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// MarkReadResponse represents mark read response
type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}
