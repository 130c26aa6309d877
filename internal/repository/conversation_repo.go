package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mbeoliero/campuschat/internal/entity"
)

// ConversationRepo maintains one index row per user pair
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Upsert points the pair's row at msg, creating the row on the first
// message. It is a single INSERT ... ON CONFLICT statement keyed on the
// canonical pair, so concurrent first messages cannot both insert.
func (r *ConversationRepo) Upsert(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	low, high := entity.CanonicalPair(msg.SenderId, msg.ReceiverId)
	now := entity.NowUnixMilli()

	conv := &entity.Conversation{
		UserLow:        low,
		UserHigh:       high,
		LastMessageId:  msg.Id,
		LastActivityAt: msg.CreatedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_low"}, {Name: "user_high"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_message_id", "last_activity_at", "updated_at"}),
	}).Create(conv).Error
}

// Get returns the row for the pair {a, b}, or nil if they never talked
func (r *ConversationRepo) Get(ctx context.Context, a, b int64) (*entity.Conversation, error) {
	low, high := entity.CanonicalPair(a, b)
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

const listForUserSQL = `
SELECT
	CASE WHEN c.user_low = @viewer THEN c.user_high ELSE c.user_low END AS peer_id,
	COALESCE(u.username, '') AS peer_username,
	c.last_message_id AS last_message_id,
	COALESCE(m.message, '') AS last_message,
	COALESCE(m.sender_id, 0) AS last_sender_id,
	c.last_activity_at AS last_activity_at,
	(
		SELECT COUNT(*) FROM messages um
		WHERE um.receiver_id = @viewer
			AND um.sender_id = CASE WHEN c.user_low = @viewer THEN c.user_high ELSE c.user_low END
			AND um.is_read = @unread
	) AS unread_count
FROM conversations c
LEFT JOIN messages m ON m.id = c.last_message_id
LEFT JOIN users u ON u.id = CASE WHEN c.user_low = @viewer THEN c.user_high ELSE c.user_low END
WHERE c.user_low = @viewer OR c.user_high = @viewer
ORDER BY c.last_activity_at DESC, c.id DESC
LIMIT @limit OFFSET @offset`

// ListForUser returns one page of viewer's conversations, most recent first,
// each with the viewer's unread count for that peer.
func (r *ConversationRepo) ListForUser(ctx context.Context, viewer int64, page, pageSize int) ([]*entity.ConversationSummary, error) {
	var results []*entity.ConversationSummary
	err := r.db.WithContext(ctx).Raw(listForUserSQL, map[string]interface{}{
		"viewer": viewer,
		"unread": false,
		"limit":  pageSize,
		"offset": entity.Offset(page, pageSize),
	}).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CountForUser counts all conversations involving viewer
func (r *ConversationRepo) CountForUser(ctx context.Context, viewer int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("user_low = ? OR user_high = ?", viewer, viewer).
		Count(&count).Error
	return count, err
}
