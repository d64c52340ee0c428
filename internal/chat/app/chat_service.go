package app

import (
	"context"
	"errors"
	"strings"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/repository"
	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// Publisher delivery side of the chat service, *eventbus.Publisher or *repository.RedisPubSub
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// DeleteResult counts of a DeleteMessages call
type DeleteResult struct {
	SenderFlagged    int `json:"sender_flagged"`
	RecipientFlagged int `json:"recipient_flagged"`
}

// ChatService 聊天訊息的唯一入口, every mutating operation goes through it.
// No lock is held across operations, the repository's conditional updates keep concurrent calls safe.
type ChatService struct {
	repo       repository.MessageRepository
	users      repository.UserDirectory
	aggregator *ConversationAggregator
	publisher  Publisher
}

// NewChatService init ChatService
func NewChatService(repo repository.MessageRepository, users repository.UserDirectory, publisher Publisher) *ChatService {
	return &ChatService{
		repo:       repo,
		users:      users,
		aggregator: NewConversationAggregator(repo, users),
		publisher:  publisher,
	}
}

// GetConversationPartnerPreviews conversation list of userID
func (s *ChatService) GetConversationPartnerPreviews(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	const op = "GetConversationPartnerPreviews"
	if userID == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, op, "user id is required", nil)
	}
	return s.aggregator.GetPartnerPreviews(ctx, userID, opts)
}

// GetMessages messages between requesterID and partnerID visible to the requester
func (s *ChatService) GetMessages(ctx context.Context, requesterID, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	const op = "GetMessages"
	if requesterID == "" || partnerID == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, op, "requester and partner ids are required", nil)
	}

	partner, err := s.resolveUser(ctx, op, partnerID, false)
	if err != nil {
		return nil, err
	}
	if partner.Status == domain.UserStatusBanned {
		return nil, domain.NewError(domain.KindForbidden, op, "partner is banned", nil)
	}

	return s.repo.ListConversation(ctx, requesterID, partnerID, opts)
}

// SendMessage persist then publish MessageCreated. A failed persist publishes nothing.
func (s *ChatService) SendMessage(ctx context.Context, senderID, recipientID, body string) (*domain.Message, error) {
	const op = "SendMessage"
	switch {
	case senderID == "" || recipientID == "":
		return nil, domain.NewError(domain.KindInvalidArgument, op, "sender and recipient ids are required", nil)
	case senderID == recipientID:
		return nil, domain.NewError(domain.KindInvalidArgument, op, "can't send a message to yourself", nil)
	case strings.TrimSpace(body) == "":
		return nil, domain.NewError(domain.KindInvalidArgument, op, "message body is empty", nil)
	}

	// status decides whether the send is allowed, a cached ban may be stale
	recipient, err := s.resolveUser(ctx, op, recipientID, true)
	if err != nil {
		return nil, err
	}
	if !recipient.Status.IsActive() {
		return nil, domain.NewError(domain.KindForbidden, op, "recipient is "+recipient.Status.String(), nil)
	}

	msg, err := s.repo.Create(ctx, &domain.Message{SenderID: senderID, RecipientID: recipientID, Body: body})
	if err != nil {
		switch {
		case domain.IsRepoKind(err, domain.RepoConstraint):
			return nil, domain.NewError(domain.KindNotFound, op, "recipient not found", err)
		case domain.IsRepoKind(err, domain.RepoValidation):
			return nil, domain.NewError(domain.KindInvalidArgument, op, "invalid message", err)
		}
		return nil, err
	}

	s.publish(ctx, domain.MessageCreated{
		RecipientID:        recipientID,
		Message:            *msg,
		OriginConnectionID: ConnectionIDFrom(ctx),
	})
	return msg, nil
}

// MarkMessagesAsRead mark everything partnerID sent to readerID as read, 0 when nothing was unread
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, readerID, partnerID string) (int, error) {
	const op = "MarkMessagesAsRead"
	if readerID == "" || partnerID == "" {
		return 0, domain.NewError(domain.KindInvalidArgument, op, "reader and partner ids are required", nil)
	}

	unread, err := s.repo.GetUnread(ctx, partnerID, readerID)
	if err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(unread))
	for _, m := range unread {
		ids = append(ids, m.ID)
	}
	n, err := s.repo.MarkAsRead(ctx, ids, readerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, domain.MessagesRead{ReaderID: readerID, PartnerID: partnerID, MessageIDs: ids, Count: n})
	}
	return n, nil
}

// DeleteMessages hide ids from userID only
func (s *ChatService) DeleteMessages(ctx context.Context, userID string, ids []string) (DeleteResult, error) {
	const op = "DeleteMessages"
	if userID == "" {
		return DeleteResult{}, domain.NewError(domain.KindInvalidArgument, op, "user id is required", nil)
	}
	if len(ids) == 0 {
		return DeleteResult{}, domain.NewError(domain.KindInvalidArgument, op, "message ids are required", nil)
	}

	sender, recipient, err := s.repo.SoftDelete(ctx, ids, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{SenderFlagged: sender, RecipientFlagged: recipient}, nil
}

// GetUnreadTotal total unread messages of userID over all partners
func (s *ChatService) GetUnreadTotal(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.NewError(domain.KindInvalidArgument, "GetUnreadTotal", "user id is required", nil)
	}
	return s.aggregator.UnreadTotal(ctx, userID)
}

// resolveUser look up userID, fresh skips a caching directory
func (s *ChatService) resolveUser(ctx context.Context, op, userID string, fresh bool) (domain.UserSummary, error) {
	get := s.users.GetUser
	if fr, ok := s.users.(repository.FreshUserReader); ok && fresh {
		get = fr.GetUserFresh
	}
	u, err := get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.UserSummary{}, domain.NewError(domain.KindNotFound, op, "user "+userID+" not found", err)
		}
		return domain.UserSummary{}, domain.NewError(domain.KindInternal, op, "user directory unavailable", err)
	}
	return u, nil
}

// publish delivery failures never fail the operation, the message is already durable
func (s *ChatService) publish(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Log.Error("publish event failed",
			zap.String("event", event.EventName()),
			zap.String("target", event.TargetUserID()),
			zap.Error(err),
		)
	}
}
