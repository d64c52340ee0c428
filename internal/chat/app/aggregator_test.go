package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func partnerIDs(previews []domain.ConversationPartnerSummary) []string {
	out := make([]string, 0, len(previews))
	for _, p := range previews {
		out = append(out, p.PartnerID)
	}
	return out
}

func TestConversationAggregator_PreviewOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := memoryService(nil)

	_, err := svc.SendMessage(ctx, "c", "a", "long ago")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	for _, body := range []string{"hi", "hey", "how are you"} {
		_, err := svc.SendMessage(ctx, "a", "b", body)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	desc, err := svc.GetConversationPartnerPreviews(ctx, "a", domain.ListOptions{Order: domain.OrderDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, partnerIDs(desc))

	assert.Equal(t, "how are you", desc[0].LastMessageSnippet)
	assert.Equal(t, "a", desc[0].LastMessageSenderID)
	assert.Equal(t, 0, desc[0].UnreadCount)
	assert.Equal(t, "Bob", desc[0].Partner.DisplayName)
	assert.Equal(t, 1, desc[1].UnreadCount)

	asc, err := svc.GetConversationPartnerPreviews(ctx, "a", domain.ListOptions{Order: domain.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, partnerIDs(asc))

	page, err := svc.GetConversationPartnerPreviews(ctx, "a", domain.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, partnerIDs(page))

	empty, err := svc.GetConversationPartnerPreviews(ctx, "a", domain.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConversationAggregator_TieBreakAndPartnerFallback(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMessageRepository)
	users := new(MockUserDirectory)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.On("PartnerIDs", ctx, "a").Return([]string{"z", "m", "b"}, nil)
	for _, p := range []string{"z", "m", "b"} {
		repo.On("LastVisibleMessage", ctx, "a", p).Return(&domain.Message{ID: p + "-1", SenderID: p, RecipientID: "a", Body: "x", CreatedAt: at}, nil)
		repo.On("CountUnread", ctx, p, "a").Return(1, nil)
	}
	users.On("GetUser", ctx, "b").Return(activeUser("b"), nil)
	users.On("GetUser", ctx, "m").Return(domain.UserSummary{}, errors.New("directory down"))
	users.On("GetUser", ctx, "z").Return(activeUser("z"), nil)

	out, err := NewConversationAggregator(repo, users).GetPartnerPreviews(ctx, "a", domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "m", "z"}, partnerIDs(out))
	assert.Equal(t, domain.UserSummary{UserID: "m", DisplayName: "m"}, out[1].Partner)
}

func TestConversationAggregator_SkipsVanishedConversation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMessageRepository)
	users := new(MockUserDirectory)

	repo.On("PartnerIDs", ctx, "a").Return([]string{"b", "c"}, nil)
	repo.On("LastVisibleMessage", ctx, "a", "b").Return(nil, domain.NewRepoError(domain.RepoNotFound, "LastVisibleMessage", nil))
	repo.On("LastVisibleMessage", ctx, "a", "c").Return(&domain.Message{ID: "c-1", SenderID: "c", RecipientID: "a", Body: "x", CreatedAt: time.Now()}, nil)
	repo.On("CountUnread", ctx, "c", "a").Return(0, nil)
	users.On("GetUser", ctx, "c").Return(activeUser("c"), nil)

	out, err := NewConversationAggregator(repo, users).GetPartnerPreviews(ctx, "a", domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, partnerIDs(out))
	repo.AssertNotCalled(t, "CountUnread", ctx, "b", "a")
}

func TestConversationAggregator_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMessageRepository)
	repo.On("PartnerIDs", ctx, "a").Return(nil, domain.NewRepoError(domain.RepoInternal, "PartnerIDs", errors.New("down")))

	_, err := NewConversationAggregator(repo, new(MockUserDirectory)).GetPartnerPreviews(ctx, "a", domain.ListOptions{})
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	repo.AssertNotCalled(t, "LastVisibleMessage", mock.Anything, mock.Anything, mock.Anything)
}

type fastPathRepo struct {
	*MockMessageRepository
	previews []domain.ConversationPartnerSummary
}

func (r fastPathRepo) AggregatePreviews(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	return r.previews, nil
}

func TestConversationAggregator_UsesPreviewAggregator(t *testing.T) {
	ctx := context.Background()
	repo := fastPathRepo{
		MockMessageRepository: new(MockMessageRepository),
		previews:              []domain.ConversationPartnerSummary{{PartnerID: "b", UnreadCount: 2}},
	}
	users := new(MockUserDirectory)
	users.On("GetUser", ctx, "b").Return(activeUser("b"), nil)

	out, err := NewConversationAggregator(repo, users).GetPartnerPreviews(ctx, "a", domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Partner.UserID)
	repo.AssertNotCalled(t, "PartnerIDs", mock.Anything, mock.Anything)
}
