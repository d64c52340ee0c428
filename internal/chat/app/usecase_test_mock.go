package app

import (
	"context"

	"direct_message_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Create moke create message
func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetByID moke find message by id
func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetUnread moke unread messages sender -> recipient
func (m *MockMessageRepository) GetUnread(ctx context.Context, senderID, recipientID string) ([]domain.Message, error) {
	args := m.Called(ctx, senderID, recipientID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkAsRead moke mark read
func (m *MockMessageRepository) MarkAsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	args := m.Called(ctx, ids, recipientID)
	return args.Int(0), args.Error(1)
}

// SoftDelete moke soft delete
func (m *MockMessageRepository) SoftDelete(ctx context.Context, ids []string, deletingUserID string) (int, int, error) {
	args := m.Called(ctx, ids, deletingUserID)
	return args.Int(0), args.Int(1), args.Error(2)
}

// ListConversation moke list conversation
func (m *MockMessageRepository) ListConversation(ctx context.Context, userID, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	args := m.Called(ctx, userID, partnerID, opts)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// PartnerIDs moke partner ids
func (m *MockMessageRepository) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// LastVisibleMessage moke last visible message
func (m *MockMessageRepository) LastVisibleMessage(ctx context.Context, userID, partnerID string) (*domain.Message, error) {
	args := m.Called(ctx, userID, partnerID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountUnread moke count unread
func (m *MockMessageRepository) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	args := m.Called(ctx, senderID, recipientID)
	return args.Int(0), args.Error(1)
}

// MockUserDirectory Mock UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

// GetUser moke get user
func (m *MockUserDirectory) GetUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.UserSummary), args.Error(1)
}

// MockPublisher Mock Publisher
type MockPublisher struct {
	mock.Mock
}

// Publish moke publish event
func (m *MockPublisher) Publish(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
