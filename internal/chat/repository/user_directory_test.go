package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/database"
	"direct_message_service/pkg/logger"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

// fakeRow pgx.Row returning fixed values
type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		}
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []interface{}
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	q.args = args
	return q.row
}

func TestPGUserDirectory_GetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		q := &fakeQuerier{row: fakeRow{values: []interface{}{"u1", "bob@example.com", 2}}}
		u, err := NewPGUserDirectory(q).GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"u1"}, q.args)
		assert.Equal(t, "bob", u.DisplayName)
		assert.Equal(t, domain.UserStatusBanned, u.Status)
	})

	t.Run("no rows", func(t *testing.T) {
		q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
		_, err := NewPGUserDirectory(q).GetUser(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		q := &fakeQuerier{row: fakeRow{err: errors.New("conn reset")}}
		_, err := NewPGUserDirectory(q).GetUser(ctx, "u1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUserNotFound)
		assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewPGUserDirectory(&fakeQuerier{}).GetUser(ctx, "")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

// mockCache testify mock of database.RedisRepository[domain.UserSummary]
type mockCache struct {
	mock.Mock
}

func (m *mockCache) Set(ctx context.Context, key string, value domain.UserSummary, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string) (domain.UserSummary, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.UserSummary), args.Error(1)
}

func (m *mockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *mockCache) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

var _ database.RedisRepository[domain.UserSummary] = (*mockCache)(nil)

func TestCachedUserDirectory(t *testing.T) {
	ctx := context.Background()
	bob := domain.UserSummary{UserID: "b", DisplayName: "Bob"}

	t.Run("hit skips the directory", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Get", ctx, "b").Return(bob, nil)

		d := NewCachedUserDirectory(NewMemoryUserDirectory(), cache, time.Minute)
		u, err := d.GetUser(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, bob, u)
		cache.AssertExpectations(t)
	})

	t.Run("miss fills the cache", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Get", ctx, "b").Return(domain.UserSummary{}, database.ErrCacheMiss)
		cache.On("Set", ctx, "b", bob, time.Minute).Return(nil)

		d := NewCachedUserDirectory(NewMemoryUserDirectory(bob), cache, time.Minute)
		u, err := d.GetUser(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, bob, u)
		cache.AssertExpectations(t)
	})

	t.Run("unknown users are not cached", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Get", ctx, "z").Return(domain.UserSummary{}, database.ErrCacheMiss)

		d := NewCachedUserDirectory(NewMemoryUserDirectory(), cache, time.Minute)
		_, err := d.GetUser(ctx, "z")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fresh read overwrites a stale entry", func(t *testing.T) {
		banned := bob
		banned.Status = domain.UserStatusBanned
		cache := new(mockCache)
		cache.On("Set", ctx, "b", banned, time.Minute).Return(nil)

		d := NewCachedUserDirectory(NewMemoryUserDirectory(banned), cache, time.Minute)
		u, err := d.GetUserFresh(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, domain.UserStatusBanned, u.Status)
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("fresh read drops a removed user", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Del", ctx, "b").Return(nil)

		d := NewCachedUserDirectory(NewMemoryUserDirectory(), cache, time.Minute)
		_, err := d.GetUserFresh(ctx, "b")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		cache.AssertExpectations(t)
	})

	t.Run("invalidate", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Del", ctx, "b").Return(nil)
		d := NewCachedUserDirectory(NewMemoryUserDirectory(), cache, 0)
		assert.NoError(t, d.Invalidate(ctx, "b"))
		cache.AssertExpectations(t)
	})
}

func TestMemoryUserDirectory_SetStatus(t *testing.T) {
	d := testUsers()
	d.SetStatus("b", domain.UserStatusDeleted)
	u, err := d.GetUser(context.Background(), "b")
	require.NoError(t, err)
	assert.False(t, u.Status.IsActive())
}
