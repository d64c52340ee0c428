package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
)

// MessageRepository definition durable direct message storage, no business logic
type MessageRepository interface {
	// Create assign id and created_at, fail with RepoValidation / RepoConstraint
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// GetUnread unread messages sender -> recipient not deleted by the recipient, oldest first
	GetUnread(ctx context.Context, senderID, recipientID string) ([]domain.Message, error)
	// MarkAsRead flip is_read on rows owned by recipientID that are still unread, return flipped count
	MarkAsRead(ctx context.Context, ids []string, recipientID string) (int, error)
	// SoftDelete set the caller's own deletion flag, return flipped counts per role
	SoftDelete(ctx context.Context, ids []string, deletingUserID string) (senderFlagged int, recipientFlagged int, err error)
	// ListConversation messages between the pair visible to userID
	ListConversation(ctx context.Context, userID, partnerID string, opts domain.ListOptions) ([]domain.Message, error)
	// PartnerIDs every user with a message visible to userID
	PartnerIDs(ctx context.Context, userID string) ([]string, error)
	// LastVisibleMessage newest message between the pair visible to userID, RepoNotFound when none
	LastVisibleMessage(ctx context.Context, userID, partnerID string) (*domain.Message, error)
	// CountUnread unread messages sender -> recipient not deleted by the recipient
	CountUnread(ctx context.Context, senderID, recipientID string) (int, error)
}

// PreviewAggregator optional fast path a MessageRepository may implement.
// Partner display metadata is left empty, callers fill it.
type PreviewAggregator interface {
	AggregatePreviews(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error)
}

// UserDirectory definition user lookup, returns domain.ErrUserNotFound for unknown ids
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (domain.UserSummary, error)
}

// FreshUserReader a directory that can skip its cache
type FreshUserReader interface {
	GetUserFresh(ctx context.Context, userID string) (domain.UserSummary, error)
}

// validateNew check the fields Create needs
func validateNew(op string, msg *domain.Message) error {
	if msg == nil {
		return domain.NewRepoError(domain.RepoValidation, op, errors.New("nil message"))
	}
	switch {
	case msg.SenderID == "":
		return domain.NewRepoError(domain.RepoValidation, op, errors.New("sender_id is required"))
	case msg.RecipientID == "":
		return domain.NewRepoError(domain.RepoValidation, op, errors.New("recipient_id is required"))
	case strings.TrimSpace(msg.Body) == "":
		return domain.NewRepoError(domain.RepoValidation, op, errors.New("body is required"))
	}
	return nil
}

// checkParties both users must exist, skipped when users is nil
func checkParties(ctx context.Context, op string, users UserDirectory, msg *domain.Message) error {
	if users == nil {
		return nil
	}
	for _, id := range []string{msg.SenderID, msg.RecipientID} {
		if _, err := users.GetUser(ctx, id); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.NewRepoError(domain.RepoConstraint, op, err)
			}
			return domain.NewRepoError(domain.RepoInternal, op, err)
		}
	}
	return nil
}

// senderClock hands out created_at values strictly increasing per sender
type senderClock struct {
	mu         sync.Mutex
	resolution time.Duration
	now        func() time.Time
	last       map[string]time.Time
}

func newSenderClock(resolution time.Duration) *senderClock {
	return &senderClock{
		resolution: resolution,
		now:        time.Now,
		last:       make(map[string]time.Time),
	}
}

// Next current time truncated to the store resolution, clamped to last+resolution
func (c *senderClock) Next(senderID string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.resolution)
	if last, ok := c.last[senderID]; ok && !t.After(last) {
		t = last.Add(c.resolution)
	}
	c.last[senderID] = t
	return t
}

func orderDir(o domain.SortOrder) string {
	if o == domain.OrderDesc {
		return "DESC"
	}
	return "ASC"
}
