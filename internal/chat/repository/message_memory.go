package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg"

	"github.com/google/uuid"
)

// MemoryMessageRepository in-process MessageRepository, used by tests and `store: memory`
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	users    UserDirectory
	clock    *senderClock
	messages map[string]*domain.Message
	order    []string
}

// NewMemoryMessageRepository create MemoryMessageRepository, users may be nil to skip existence checks
func NewMemoryMessageRepository(users UserDirectory) *MemoryMessageRepository {
	return &MemoryMessageRepository{
		users:    users,
		clock:    newSenderClock(time.Microsecond),
		messages: make(map[string]*domain.Message),
	}
}

// Create store a copy of msg
func (r *MemoryMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	const op = "memory.Create"
	if err := validateNew(op, msg); err != nil {
		return nil, err
	}
	if err := checkParties(ctx, op, r.users, msg); err != nil {
		return nil, err
	}

	stored := domain.Message{
		ID:          uuid.NewString(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		CreatedAt:   r.clock.Next(msg.SenderID),
	}

	r.mu.Lock()
	r.messages[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// GetByID get message by id
func (r *MemoryMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, domain.NewRepoError(domain.RepoNotFound, "memory.GetByID", errors.New("message "+id+" not found"))
	}
	out := *m
	return &out, nil
}

// GetUnread oldest first
func (r *MemoryMessageRepository) GetUnread(ctx context.Context, senderID, recipientID string) ([]domain.Message, error) {
	out := r.filter(func(m *domain.Message) bool {
		return isUnread(m, senderID, recipientID)
	})
	sortByTime(out, domain.OrderAsc)
	return out, nil
}

// MarkAsRead flip only rows owned by recipientID that are unread
func (r *MemoryMessageRepository) MarkAsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range pkg.Unique(ids) {
		m, ok := r.messages[id]
		if !ok || m.RecipientID != recipientID || m.IsRead {
			continue
		}
		m.IsRead = true
		n++
	}
	return n, nil
}

// SoftDelete set the caller's flag on each row according to its role
func (r *MemoryMessageRepository) SoftDelete(ctx context.Context, ids []string, deletingUserID string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var senderFlagged, recipientFlagged int
	for _, id := range pkg.Unique(ids) {
		m, ok := r.messages[id]
		if !ok {
			continue
		}
		if m.SenderID == deletingUserID && !m.SenderDeleted {
			m.SenderDeleted = true
			senderFlagged++
		}
		if m.RecipientID == deletingUserID && !m.RecipientDeleted {
			m.RecipientDeleted = true
			recipientFlagged++
		}
	}
	return senderFlagged, recipientFlagged, nil
}

// ListConversation page of the pair's messages visible to userID
func (r *MemoryMessageRepository) ListConversation(ctx context.Context, userID, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	opts = opts.Normalize(domain.OrderAsc)
	out := r.filter(func(m *domain.Message) bool {
		return m.Involves(userID, partnerID) && m.VisibleTo(userID)
	})
	sortByTime(out, opts.Order)
	return page(out, opts), nil
}

// PartnerIDs union of both directions, each filtered by userID's own flag
func (r *MemoryMessageRepository) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.order {
		m := r.messages[id]
		if (m.SenderID == userID || m.RecipientID == userID) && m.VisibleTo(userID) {
			ids = append(ids, m.PartnerOf(userID))
		}
	}
	ids = pkg.Unique(ids)
	sort.Strings(ids)
	return ids, nil
}

// LastVisibleMessage newest visible message of the pair
func (r *MemoryMessageRepository) LastVisibleMessage(ctx context.Context, userID, partnerID string) (*domain.Message, error) {
	out := r.filter(func(m *domain.Message) bool {
		return m.Involves(userID, partnerID) && m.VisibleTo(userID)
	})
	if len(out) == 0 {
		return nil, domain.NewRepoError(domain.RepoNotFound, "memory.LastVisibleMessage", errors.New("no visible message"))
	}
	sortByTime(out, domain.OrderDesc)
	return &out[0], nil
}

// CountUnread count unread sender -> recipient
func (r *MemoryMessageRepository) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	return len(r.filter(func(m *domain.Message) bool {
		return isUnread(m, senderID, recipientID)
	})), nil
}

// Ping always healthy
func (r *MemoryMessageRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryMessageRepository) filter(keep func(m *domain.Message) bool) []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Message
	for _, id := range r.order {
		if m := r.messages[id]; keep(m) {
			out = append(out, *m)
		}
	}
	return out
}

func isUnread(m *domain.Message, senderID, recipientID string) bool {
	return m.SenderID == senderID && m.RecipientID == recipientID && !m.IsRead && !m.RecipientDeleted
}

// sortByTime created_at then id, the same order the SQL stores use
func sortByTime(msgs []domain.Message, order domain.SortOrder) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == domain.OrderDesc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if order == domain.OrderDesc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func page(msgs []domain.Message, opts domain.ListOptions) []domain.Message {
	if opts.Offset >= len(msgs) {
		return []domain.Message{}
	}
	end := opts.Offset + opts.Limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return msgs[opts.Offset:end]
}
