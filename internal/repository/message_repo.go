package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mbeoliero/campuschat/internal/entity"
)

// MessageRepo is the message store: append-only apart from the read flag
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts msg as unread with a store-assigned timestamp. msg.Id is
// filled in on success.
func (r *MessageRepo) Append(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	msg.Id = 0
	msg.IsRead = false
	msg.CreatedAt = entity.NowUnixMilli()
	return tx.WithContext(ctx).Create(msg).Error
}

// MarkReadFromPeer flags every unread message from peer to viewer as read
// and returns how many rows changed. Zero rows is not an error.
func (r *MessageRepo) MarkReadFromPeer(ctx context.Context, viewer, peer int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", viewer, peer, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// pairScope restricts a query to messages exchanged between a and b
func pairScope(a, b int64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	}
}

// ListBetween returns one page of the pair's messages, newest first
func (r *MessageRepo) ListBetween(ctx context.Context, a, b int64, page, pageSize int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Scopes(pairScope(a, b)).
		Order("id DESC").
		Offset(entity.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CountBetween counts all messages exchanged between a and b
func (r *MessageRepo) CountBetween(ctx context.Context, a, b int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Scopes(pairScope(a, b)).
		Count(&count).Error
	return count, err
}

// CountUnread counts unread messages addressed to viewer from anyone
func (r *MessageRepo) CountUnread(ctx context.Context, viewer int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("receiver_id = ? AND is_read = ?", viewer, false).
		Count(&count).Error
	return count, err
}
