package entity

// Conversation is the denormalized index row for one unordered user pair,
// stored as (UserLow, UserHigh) = (min, max).
type Conversation struct {
	Id             int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserLow        int64 `json:"user_low" gorm:"column:user_low;not null;uniqueIndex:uk_conversations_pair,priority:1"`
	UserHigh       int64 `json:"user_high" gorm:"column:user_high;not null;uniqueIndex:uk_conversations_pair,priority:2"`
	LastMessageId  int64 `json:"last_message_id" gorm:"column:last_message_id;not null"`
	LastActivityAt int64 `json:"last_activity_at" gorm:"column:last_activity_at;not null;index"`
	CreatedAt      int64 `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64 `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationSummary is one entry of a viewer's conversation list
type ConversationSummary struct {
	PeerId         int64  `json:"peer_id" gorm:"column:peer_id"`
	PeerUsername   string `json:"peer_username" gorm:"column:peer_username"`
	LastMessageId  int64  `json:"last_message_id" gorm:"column:last_message_id"`
	LastMessage    string `json:"last_message" gorm:"column:last_message"`
	LastSenderId   int64  `json:"last_sender_id" gorm:"column:last_sender_id"`
	LastActivityAt int64  `json:"last_activity_at" gorm:"column:last_activity_at"`
	UnreadCount    int64  `json:"unread_count" gorm:"column:unread_count"`
}
