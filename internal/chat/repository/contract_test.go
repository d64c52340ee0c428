package repository

import (
	"context"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUsers a, b, c active, banned user x
func testUsers() *MemoryUserDirectory {
	return NewMemoryUserDirectory(
		domain.UserSummary{UserID: "a", DisplayName: "Alice", Status: domain.UserStatusOnline},
		domain.UserSummary{UserID: "b", DisplayName: "Bob", Status: domain.UserStatusOffline},
		domain.UserSummary{UserID: "c", DisplayName: "Carol", Status: domain.UserStatusOnline},
		domain.UserSummary{UserID: "x", DisplayName: "Xavier", Status: domain.UserStatusBanned},
	)
}

func mustCreate(t *testing.T, repo MessageRepository, from, to, body string) *domain.Message {
	t.Helper()
	m, err := repo.Create(context.Background(), &domain.Message{SenderID: from, RecipientID: to, Body: body})
	require.NoError(t, err)
	// different senders use different clocks, keep cross-sender order stable
	time.Sleep(2 * time.Millisecond)
	return m
}

func ids(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

// runMessageRepositoryContract behaviour every MessageRepository must share.
// newRepo must return an empty repository that knows testUsers.
func runMessageRepositoryContract(t *testing.T, newRepo func(t *testing.T) MessageRepository) {
	ctx := context.Background()

	t.Run("create validation", func(t *testing.T) {
		repo := newRepo(t)
		cases := []domain.Message{
			{RecipientID: "b", Body: "hi"},
			{SenderID: "a", Body: "hi"},
			{SenderID: "a", RecipientID: "b", Body: "   "},
		}
		for _, c := range cases {
			c := c
			_, err := repo.Create(ctx, &c)
			assert.True(t, domain.IsRepoKind(err, domain.RepoValidation), "got %v", err)
		}
	})

	t.Run("create unknown party", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, &domain.Message{SenderID: "a", RecipientID: "nobody", Body: "hi"})
		assert.True(t, domain.IsRepoKind(err, domain.RepoConstraint), "got %v", err)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("create assigns id and monotonic time", func(t *testing.T) {
		repo := newRepo(t)
		var last time.Time
		for i := 0; i < 5; i++ {
			m, err := repo.Create(ctx, &domain.Message{SenderID: "a", RecipientID: "b", Body: "hi"})
			require.NoError(t, err)
			assert.NotEmpty(t, m.ID)
			assert.False(t, m.IsRead)
			assert.True(t, m.CreatedAt.After(last), "created_at must increase per sender")
			last = m.CreatedAt
		}

		got, err := repo.GetByID(ctx, "missing")
		assert.Nil(t, got)
		assert.True(t, domain.IsRepoKind(err, domain.RepoNotFound))
	})

	t.Run("get unread oldest first", func(t *testing.T) {
		repo := newRepo(t)
		m1 := mustCreate(t, repo, "a", "b", "1")
		mustCreate(t, repo, "b", "a", "reply")
		m2 := mustCreate(t, repo, "a", "b", "2")
		m3 := mustCreate(t, repo, "a", "b", "3")

		_, recipientFlagged, err := repo.SoftDelete(ctx, []string{m2.ID}, "b")
		require.NoError(t, err)
		assert.Equal(t, 1, recipientFlagged)

		unread, err := repo.GetUnread(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, []string{m1.ID, m3.ID}, ids(unread))
		for i := 1; i < len(unread); i++ {
			assert.False(t, unread[i].CreatedAt.Before(unread[i-1].CreatedAt))
		}

		n, err := repo.CountUnread(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("mark as read is idempotent and scoped to the recipient", func(t *testing.T) {
		repo := newRepo(t)
		m1 := mustCreate(t, repo, "a", "b", "1")
		m2 := mustCreate(t, repo, "a", "b", "2")

		n, err := repo.MarkAsRead(ctx, []string{m1.ID, m2.ID}, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, n, "sender can't mark its own messages")

		n, err = repo.MarkAsRead(ctx, []string{m1.ID, m2.ID}, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = repo.MarkAsRead(ctx, []string{m1.ID, m2.ID}, "b")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		got, err := repo.GetByID(ctx, m1.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)

		n, err = repo.MarkAsRead(ctx, nil, "b")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("soft delete visibility is independent", func(t *testing.T) {
		repo := newRepo(t)
		m1 := mustCreate(t, repo, "a", "b", "1")
		m2 := mustCreate(t, repo, "b", "a", "2")

		s, r, err := repo.SoftDelete(ctx, []string{m1.ID, m2.ID}, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, s)
		assert.Equal(t, 1, r)

		forA, err := repo.ListConversation(ctx, "a", "b", domain.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, forA)

		forB, err := repo.ListConversation(ctx, "b", "a", domain.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{m1.ID, m2.ID}, ids(forB))

		s, r, err = repo.SoftDelete(ctx, []string{m1.ID}, "c")
		require.NoError(t, err)
		assert.Equal(t, 0, s)
		assert.Equal(t, 0, r)

		s, r, err = repo.SoftDelete(ctx, []string{m1.ID}, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, s, "already flagged")
		assert.Equal(t, 0, r)
	})

	t.Run("partner ids use the caller's own flag", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, "a", "b", "to b")
		fromC := mustCreate(t, repo, "c", "a", "from c")

		partners, err := repo.PartnerIDs(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, partners)

		_, _, err = repo.SoftDelete(ctx, []string{fromC.ID}, "a")
		require.NoError(t, err)

		partners, err = repo.PartnerIDs(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, partners)

		partners, err = repo.PartnerIDs(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, partners, "c still sees its own message")
	})

	t.Run("last visible message", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, "a", "b", "first")
		last := mustCreate(t, repo, "b", "a", "second")

		got, err := repo.LastVisibleMessage(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, last.ID, got.ID)
		assert.Equal(t, "second", got.Body)

		_, _, err = repo.SoftDelete(ctx, []string{last.ID}, "a")
		require.NoError(t, err)
		got, err = repo.LastVisibleMessage(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Body)

		got, err = repo.LastVisibleMessage(ctx, "b", "a")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Body)

		_, err = repo.LastVisibleMessage(ctx, "a", "c")
		assert.True(t, domain.IsRepoKind(err, domain.RepoNotFound))
	})

	t.Run("list conversation order and paging", func(t *testing.T) {
		repo := newRepo(t)
		var all []string
		for i := 0; i < 4; i++ {
			from, to := "a", "b"
			if i%2 == 1 {
				from, to = "b", "a"
			}
			all = append(all, mustCreate(t, repo, from, to, "m").ID)
		}
		mustCreate(t, repo, "a", "c", "other conversation")

		asc, err := repo.ListConversation(ctx, "a", "b", domain.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, all, ids(asc))

		desc, err := repo.ListConversation(ctx, "a", "b", domain.ListOptions{Order: domain.OrderDesc, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{all[3], all[2]}, ids(desc))

		paged, err := repo.ListConversation(ctx, "a", "b", domain.ListOptions{Limit: 2, Offset: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{all[3]}, ids(paged))

		empty, err := repo.ListConversation(ctx, "a", "b", domain.ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
