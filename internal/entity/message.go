package entity

import (
	"strings"

	"github.com/mbeoliero/campuschat/pkg/constant"
	"github.com/mbeoliero/campuschat/pkg/errcode"
)

// Message is one direct message. Only IsRead ever changes after insert,
// and only from false to true.
type Message struct {
	Id          int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	SenderId    int64  `json:"sender_id" gorm:"column:sender_id;not null;index:idx_messages_pair,priority:1;index:idx_messages_unread,priority:2"`
	ReceiverId  int64  `json:"receiver_id" gorm:"column:receiver_id;not null;index:idx_messages_pair,priority:2;index:idx_messages_unread,priority:1"`
	Body        string `json:"message" gorm:"column:message;type:text;not null"`
	MessageType string `json:"message_type" gorm:"column:message_type;size:16;not null"`
	IsRead      bool   `json:"is_read" gorm:"column:is_read;not null;default:false;index:idx_messages_unread,priority:3"`
	CreatedAt   int64  `json:"created_at" gorm:"column:created_at;not null"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// NewTextMessage builds an unsaved, unread text message
func NewTextMessage(senderId, receiverId int64, body string) *Message {
	return &Message{
		SenderId:    senderId,
		ReceiverId:  receiverId,
		Body:        body,
		MessageType: constant.MsgTypeText,
		IsRead:      false,
	}
}

// Validate checks the invariants a message must hold before it is stored
func (m *Message) Validate() error {
	if m.ReceiverId <= 0 {
		return errcode.ErrReceiverRequired
	}
	if m.SenderId == m.ReceiverId {
		return errcode.ErrSelfMessage
	}
	if strings.TrimSpace(m.Body) == "" {
		return errcode.ErrEmptyMessage
	}
	return nil
}

// MessageView is a message joined with both participants' display names
type MessageView struct {
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

// ToView converts Message to MessageView using the given display names
func (m *Message) ToView(senderName, receiverName string) *MessageView {
	return &MessageView{
		Id:               m.Id,
		SenderId:         m.SenderId,
		ReceiverId:       m.ReceiverId,
		Message:          m.Body,
		MessageType:      m.MessageType,
		IsRead:           m.IsRead,
		CreatedAt:        m.CreatedAt,
		SenderUsername:   senderName,
		ReceiverUsername: receiverName,
	}
}
