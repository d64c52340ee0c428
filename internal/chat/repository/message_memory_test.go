package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMessageRepository_Contract(t *testing.T) {
	runMessageRepositoryContract(t, func(t *testing.T) MessageRepository {
		return NewMemoryMessageRepository(testUsers())
	})
}

func TestMemoryMessageRepository_ConcurrentMarkAsRead(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepository(testUsers())
	var msgIDs []string
	for i := 0; i < 20; i++ {
		m, err := repo.Create(ctx, &domain.Message{SenderID: "a", RecipientID: "b", Body: "hi"})
		require.NoError(t, err)
		msgIDs = append(msgIDs, m.ID)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.MarkAsRead(ctx, msgIDs, "b")
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, total, "each row flips exactly once")
}

func TestMemoryMessageRepository_NilDirectorySkipsCheck(t *testing.T) {
	repo := NewMemoryMessageRepository(nil)
	_, err := repo.Create(context.Background(), &domain.Message{SenderID: "a", RecipientID: "ghost", Body: "hi"})
	assert.NoError(t, err)
}

func TestSenderClock_Next(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newSenderClock(time.Microsecond)
	c.now = func() time.Time { return fixed }

	t1 := c.Next("a")
	t2 := c.Next("a")
	t3 := c.Next("b")

	assert.Equal(t, fixed, t1)
	assert.Equal(t, fixed.Add(time.Microsecond), t2)
	assert.Equal(t, fixed, t3, "clamp is per sender")

	c.now = func() time.Time { return fixed.Add(-time.Second) }
	assert.Equal(t, fixed.Add(2*time.Microsecond), c.Next("a"), "a clock going backwards still increases")
}
