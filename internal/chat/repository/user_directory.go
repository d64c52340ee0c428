package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/database"
	"direct_message_service/pkg/logger"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
)

// rowQuerier the part of *pgxpool.Pool the directory uses
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type pgUserDirectory struct {
	db rowQuerier
}

// NewPGUserDirectory UserDirectory over the member table
func NewPGUserDirectory(db rowQuerier) UserDirectory {
	return &pgUserDirectory{db: db}
}

func (d *pgUserDirectory) GetUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	if userID == "" {
		return domain.UserSummary{}, domain.ErrUserNotFound
	}

	var (
		u      domain.UserSummary
		email  string
		status int
	)
	err := d.db.QueryRow(ctx,
		"SELECT member_id, email, status FROM member WHERE member_id = $1",
		userID,
	).Scan(&u.UserID, &email, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserSummary{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return domain.UserSummary{}, fmt.Errorf("get member %s: %w", userID, err)
	}
	u.Status = domain.UserStatus(status)
	u.DisplayName = displayName(email, u.UserID)
	return u, nil
}

// displayName local part of the email, falls back to the id
func displayName(email, userID string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	if email != "" {
		return email
	}
	return userID
}

// UserCachePrefix redis key prefix of cached summaries
const UserCachePrefix = "chat:user_summary:"

// CachedUserDirectory read-through redis cache in front of another UserDirectory
type CachedUserDirectory struct {
	next  UserDirectory
	cache database.RedisRepository[domain.UserSummary]
	ttl   time.Duration
}

// NewCachedUserDirectory wrap next, unknown users are never cached
func NewCachedUserDirectory(next UserDirectory, cache database.RedisRepository[domain.UserSummary], ttl time.Duration) *CachedUserDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedUserDirectory{next: next, cache: cache, ttl: ttl}
}

// GetUser cache first, then next
func (d *CachedUserDirectory) GetUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	u, err := d.cache.Get(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		logger.Log.Warn("user cache get failed", zap.String("userID", userID), zap.Error(err))
	}

	u, err = d.next.GetUser(ctx, userID)
	if err != nil {
		return domain.UserSummary{}, err
	}
	if err := d.cache.Set(ctx, userID, u, d.ttl); err != nil {
		logger.Log.Warn("user cache set failed", zap.String("userID", userID), zap.Error(err))
	}
	return u, nil
}

// GetUserFresh read next and overwrite the cached copy. A user gone from next is dropped from the cache.
func (d *CachedUserDirectory) GetUserFresh(ctx context.Context, userID string) (domain.UserSummary, error) {
	u, err := d.next.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			if err := d.cache.Del(ctx, userID); err != nil {
				logger.Log.Warn("user cache del failed", zap.String("userID", userID), zap.Error(err))
			}
		}
		return domain.UserSummary{}, err
	}
	if err := d.cache.Set(ctx, userID, u, d.ttl); err != nil {
		logger.Log.Warn("user cache set failed", zap.String("userID", userID), zap.Error(err))
	}
	return u, nil
}

// Invalidate drop a cached summary, e.g. after a ban
func (d *CachedUserDirectory) Invalidate(ctx context.Context, userID string) error {
	return d.cache.Del(ctx, userID)
}

// MemoryUserDirectory map backed UserDirectory
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.UserSummary
}

// NewMemoryUserDirectory create MemoryUserDirectory seeded with users
func NewMemoryUserDirectory(users ...domain.UserSummary) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[string]domain.UserSummary)}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

// Put add or replace a user
func (d *MemoryUserDirectory) Put(u domain.UserSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.UserID] = u
}

// SetStatus change a known user's status
func (d *MemoryUserDirectory) SetStatus(userID string, status domain.UserStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[userID]; ok {
		u.Status = status
		d.users[userID] = u
	}
}

// GetUser lookup userID
func (d *MemoryUserDirectory) GetUser(ctx context.Context, userID string) (domain.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return domain.UserSummary{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return u, nil
}
