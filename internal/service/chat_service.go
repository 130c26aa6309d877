package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"

	"github.com/mbeoliero/campuschat/internal/entity"
	"github.com/mbeoliero/campuschat/internal/repository"
	"github.com/mbeoliero/campuschat/pkg/constant"
	"github.com/mbeoliero/campuschat/pkg/errcode"
)

// ChatService handles direct messages between users
type ChatService struct {
	msgRepo  *repository.MessageRepo
	convRepo *repository.ConversationRepo
	userRepo *repository.UserRepo
	unread   *repository.UnreadCache
	repos    *repository.Repositories
}

// NewChatService creates a new ChatService
func NewChatService(repos *repository.Repositories) *ChatService {
	return &ChatService{
		msgRepo:  repos.Message,
		convRepo: repos.Conversation,
		userRepo: repos.User,
		unread:   repos.Unread,
		repos:    repos,
	}
}

// UserId is a user id that decodes from either a JSON number or a numeric string
type UserId int64

// UnmarshalJSON implements json.Unmarshaler
func (id *UserId) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %s", data)
	}
	*id = UserId(n)
	return nil
}

// SendMessageRequest represents send message request. Clients send the
// receiver as either receiverId or receiver_id.
type SendMessageRequest struct {
	ReceiverId      UserId `json:"receiverId"`
	ReceiverIdSnake UserId `json:"receiver_id"`
	Message         string `json:"message"`
}

// Receiver returns the receiver id, preferring the camelCase key
func (r *SendMessageRequest) Receiver() int64 {
	if r.ReceiverId != 0 {
		return int64(r.ReceiverId)
	}
	return int64(r.ReceiverIdSnake)
}

// SendMessage stores a message from viewer and moves the pair's conversation
// to it. Both writes happen in one transaction.
func (s *ChatService) SendMessage(ctx context.Context, viewer int64, req *SendMessageRequest) (*entity.MessageView, error) {
	receiver := req.Receiver()
	msg := entity.NewTextMessage(viewer, receiver, req.Message)
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	names, err := s.userRepo.GetUsernames(ctx, viewer, receiver)
	if err != nil {
		log.CtxError(ctx, "load chat participants failed: sender_id=%d, receiver_id=%d, error=%v", viewer, receiver, err)
		return nil, errcode.ErrInternalServer
	}
	if _, ok := names[receiver]; !ok {
		return nil, errcode.ErrReceiverNotFound
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.msgRepo.Append(ctx, tx, msg); err != nil {
			return err
		}
		return s.convRepo.Upsert(ctx, tx, msg)
	})
	if err != nil {
		var e *errcode.Error
		if errors.As(err, &e) {
			return nil, e
		}
		log.CtxError(ctx, "send message failed: sender_id=%d, receiver_id=%d, error=%v", viewer, receiver, err)
		return nil, errcode.ErrSendFailed
	}

	if err := s.unread.Invalidate(ctx, receiver); err != nil {
		log.CtxWarn(ctx, "invalidate unread cache failed: user_id=%d, error=%v", receiver, err)
	}

	log.CtxInfo(ctx, "message sent: id=%d, sender_id=%d, receiver_id=%d", msg.Id, viewer, receiver)
	return msg.ToView(names[viewer], names[receiver]), nil
}

// HistoryResult is one page of a conversation in reading order
type HistoryResult struct {
	Messages   []*entity.MessageView `json:"messages"`
	Pagination entity.Pagination     `json:"pagination"`
}

// GetHistory returns one page of the conversation between viewer and peer,
// oldest first. Fetching history acknowledges the peer's messages: every
// unread message from peer to viewer is marked read afterwards.
func (s *ChatService) GetHistory(ctx context.Context, viewer, peer int64, page, limit int) (*HistoryResult, error) {
	if peer <= 0 {
		return nil, errcode.ErrInvalidParam.WithMsg("invalid user id")
	}
	if peer == viewer {
		return nil, errcode.ErrSelfHistory
	}

	names, err := s.userRepo.GetUsernames(ctx, viewer, peer)
	if err != nil {
		log.CtxError(ctx, "load chat participants failed: viewer=%d, peer=%d, error=%v", viewer, peer, err)
		return nil, errcode.ErrInternalServer
	}
	if _, ok := names[peer]; !ok {
		return nil, errcode.ErrPeerNotFound
	}

	page, limit = entity.ClampPage(page, limit, constant.DefaultHistoryPageSize, constant.MaxHistoryPageSize)

	messages, err := s.msgRepo.ListBetween(ctx, viewer, peer, page, limit)
	if err != nil {
		log.CtxError(ctx, "list messages failed: viewer=%d, peer=%d, error=%v", viewer, peer, err)
		return nil, errcode.ErrHistoryFailed
	}
	total, err := s.msgRepo.CountBetween(ctx, viewer, peer)
	if err != nil {
		log.CtxError(ctx, "count messages failed: viewer=%d, peer=%d, error=%v", viewer, peer, err)
		return nil, errcode.ErrHistoryFailed
	}

	// Storage order is newest first; clients read oldest first.
	views := make([]*entity.MessageView, len(messages))
	for i, msg := range messages {
		views[len(messages)-1-i] = msg.ToView(names[msg.SenderId], names[msg.ReceiverId])
	}

	if _, err := s.markRead(ctx, viewer, peer); err != nil {
		return nil, errcode.ErrHistoryFailed
	}

	return &HistoryResult{
		Messages:   views,
		Pagination: entity.NewPagination(page, limit, total),
	}, nil
}

// MarkRead acknowledges every unread message from peer to viewer without
// loading history. It returns the number of messages that changed state.
func (s *ChatService) MarkRead(ctx context.Context, viewer, peer int64) (int64, error) {
	if peer <= 0 {
		return 0, errcode.ErrInvalidParam.WithMsg("invalid user id")
	}
	if peer == viewer {
		return 0, errcode.ErrSelfHistory
	}
	exists, err := s.userRepo.Exists(ctx, peer)
	if err != nil {
		log.CtxError(ctx, "check user exists failed: user_id=%d, error=%v", peer, err)
		return 0, errcode.ErrInternalServer
	}
	if !exists {
		return 0, errcode.ErrPeerNotFound
	}

	marked, err := s.markRead(ctx, viewer, peer)
	if err != nil {
		return 0, errcode.ErrInternalServer
	}
	return marked, nil
}

func (s *ChatService) markRead(ctx context.Context, viewer, peer int64) (int64, error) {
	marked, err := s.msgRepo.MarkReadFromPeer(ctx, viewer, peer)
	if err != nil {
		log.CtxError(ctx, "mark messages read failed: viewer=%d, peer=%d, error=%v", viewer, peer, err)
		return 0, err
	}
	if marked > 0 {
		if err := s.unread.Invalidate(ctx, viewer); err != nil {
			log.CtxWarn(ctx, "invalidate unread cache failed: user_id=%d, error=%v", viewer, err)
		}
		log.CtxDebug(ctx, "messages marked read: viewer=%d, peer=%d, count=%d", viewer, peer, marked)
	}
	return marked, nil
}

// ConversationListResult is one page of a viewer's conversation list
type ConversationListResult struct {
	Conversations []*entity.ConversationSummary `json:"conversations"`
	Pagination    entity.Pagination             `json:"pagination"`
}

// ListConversations returns viewer's conversations, most recent first. It
// never changes read state.
func (s *ChatService) ListConversations(ctx context.Context, viewer int64, page, limit int) (*ConversationListResult, error) {
	page, limit = entity.ClampPage(page, limit, constant.DefaultConversationPageSize, constant.MaxConversationPageSize)

	convs, err := s.convRepo.ListForUser(ctx, viewer, page, limit)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%d, error=%v", viewer, err)
		return nil, errcode.ErrInternalServer
	}
	total, err := s.convRepo.CountForUser(ctx, viewer)
	if err != nil {
		log.CtxError(ctx, "count conversations failed: user_id=%d, error=%v", viewer, err)
		return nil, errcode.ErrInternalServer
	}
	if convs == nil {
		convs = []*entity.ConversationSummary{}
	}

	return &ConversationListResult{
		Conversations: convs,
		Pagination:    entity.NewPagination(page, limit, total),
	}, nil
}

// GetUnreadCount returns how many messages addressed to viewer are unread
func (s *ChatService) GetUnreadCount(ctx context.Context, viewer int64) (int64, error) {
	if n, ok, err := s.unread.Get(ctx, viewer); err != nil {
		log.CtxWarn(ctx, "read unread cache failed: user_id=%d, error=%v", viewer, err)
	} else if ok {
		return n, nil
	}

	version, verErr := s.unread.Version(ctx, viewer)
	if verErr != nil {
		log.CtxWarn(ctx, "read unread cache version failed: user_id=%d, error=%v", viewer, verErr)
	}

	n, err := s.msgRepo.CountUnread(ctx, viewer)
	if err != nil {
		log.CtxError(ctx, "count unread failed: user_id=%d, error=%v", viewer, err)
		return 0, errcode.ErrInternalServer
	}

	if verErr == nil {
		if _, err := s.unread.Set(ctx, viewer, n, version); err != nil {
			log.CtxWarn(ctx, "write unread cache failed: user_id=%d, error=%v", viewer, err)
		}
	}
	return n, nil
}
