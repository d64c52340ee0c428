package repository

import (
	"context"
	"errors"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// messageRecord row of direct_messages
type messageRecord struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)"`
	SenderID         string    `gorm:"type:varchar(64);not null;index:idx_dm_pair,priority:1;index:idx_dm_sender"`
	RecipientID      string    `gorm:"type:varchar(64);not null;index:idx_dm_pair,priority:2;index:idx_dm_recipient"`
	Body             string    `gorm:"type:text;not null"`
	CreatedAt        time.Time `gorm:"not null;index:idx_dm_pair,priority:3"`
	IsRead           bool      `gorm:"not null;default:false"`
	SenderDeleted    bool      `gorm:"not null;default:false"`
	RecipientDeleted bool      `gorm:"not null;default:false"`
}

// TableName gorm table name
func (messageRecord) TableName() string { return "direct_messages" }

func (m *messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:               m.ID,
		SenderID:         m.SenderID,
		RecipientID:      m.RecipientID,
		Body:             m.Body,
		CreatedAt:        m.CreatedAt.UTC(),
		IsRead:           m.IsRead,
		SenderDeleted:    m.SenderDeleted,
		RecipientDeleted: m.RecipientDeleted,
	}
}

// visibleBetween rows of the pair userID can still see
const visibleBetween = "((sender_id = ? AND recipient_id = ? AND sender_deleted = false) OR " +
	"(sender_id = ? AND recipient_id = ? AND recipient_deleted = false))"

// GormMessageRepository postgres MessageRepository
type GormMessageRepository struct {
	db    *gorm.DB
	users UserDirectory
	clock *senderClock
}

// NewGormMessageRepository create GormMessageRepository, users may be nil to rely on FK constraints only
func NewGormMessageRepository(db *gorm.DB, users UserDirectory) *GormMessageRepository {
	return &GormMessageRepository{
		db:    db,
		users: users,
		clock: newSenderClock(time.Microsecond),
	}
}

// AutoMigrate create / update the direct_messages table
func (r *GormMessageRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&messageRecord{})
}

// Ping check the sql pool
func (r *GormMessageRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Create insert one message
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	const op = "gorm.Create"
	if err := validateNew(op, msg); err != nil {
		return nil, err
	}
	if err := checkParties(ctx, op, r.users, msg); err != nil {
		return nil, err
	}

	rec := messageRecord{
		ID:          uuid.NewString(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		CreatedAt:   r.clock.Next(msg.SenderID),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, gormError(op, err)
	}
	out := rec.toDomain()
	return &out, nil
}

// GetByID get message by id
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var rec messageRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, gormError("gorm.GetByID", err)
	}
	out := rec.toDomain()
	return &out, nil
}

// GetUnread oldest first
func (r *GormMessageRepository) GetUnread(ctx context.Context, senderID, recipientID string) ([]domain.Message, error) {
	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_id = ? AND is_read = false AND recipient_deleted = false", senderID, recipientID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, gormError("gorm.GetUnread", err)
	}
	return toDomainList(recs), nil
}

// MarkAsRead conditional update, the is_read guard makes concurrent marks safe
func (r *GormMessageRepository) MarkAsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	ids = pkg.Unique(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("id IN ? AND recipient_id = ? AND is_read = false", ids, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return 0, gormError("gorm.MarkAsRead", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SoftDelete flag the sender side and recipient side in one transaction
func (r *GormMessageRepository) SoftDelete(ctx context.Context, ids []string, deletingUserID string) (int, int, error) {
	const op = "gorm.SoftDelete"
	ids = pkg.Unique(ids)
	if len(ids) == 0 {
		return 0, 0, nil
	}

	var senderFlagged, recipientFlagged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&messageRecord{}).
			Where("id IN ? AND sender_id = ? AND sender_deleted = false", ids, deletingUserID).
			Update("sender_deleted", true)
		if res.Error != nil {
			return res.Error
		}
		senderFlagged = res.RowsAffected

		res = tx.Model(&messageRecord{}).
			Where("id IN ? AND recipient_id = ? AND recipient_deleted = false", ids, deletingUserID).
			Update("recipient_deleted", true)
		if res.Error != nil {
			return res.Error
		}
		recipientFlagged = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, gormError(op, err)
	}
	return int(senderFlagged), int(recipientFlagged), nil
}

// ListConversation page of the pair's messages visible to userID
func (r *GormMessageRepository) ListConversation(ctx context.Context, userID, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	opts = opts.Normalize(domain.OrderAsc)
	dir := orderDir(opts.Order)

	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Where(visibleBetween, userID, partnerID, partnerID, userID).
		Order("created_at " + dir + ", id " + dir).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&recs).Error
	if err != nil {
		return nil, gormError("gorm.ListConversation", err)
	}
	return toDomainList(recs), nil
}

// PartnerIDs distinct recipients of userID union distinct senders to userID
func (r *GormMessageRepository) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT recipient_id FROM direct_messages WHERE sender_id = ? AND sender_deleted = false
		 UNION
		 SELECT sender_id FROM direct_messages WHERE recipient_id = ? AND recipient_deleted = false
		 ORDER BY 1`,
		userID, userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, gormError("gorm.PartnerIDs", err)
	}
	return ids, nil
}

// LastVisibleMessage newest visible message of the pair
func (r *GormMessageRepository) LastVisibleMessage(ctx context.Context, userID, partnerID string) (*domain.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).
		Where(visibleBetween, userID, partnerID, partnerID, userID).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		return nil, gormError("gorm.LastVisibleMessage", err)
	}
	out := rec.toDomain()
	return &out, nil
}

// CountUnread count unread sender -> recipient
func (r *GormMessageRepository) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = false AND recipient_deleted = false", senderID, recipientID).
		Count(&n).Error
	if err != nil {
		return 0, gormError("gorm.CountUnread", err)
	}
	return int(n), nil
}

func toDomainList(recs []messageRecord) []domain.Message {
	out := make([]domain.Message, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out
}

// gormError wrap a gorm error into the repository taxonomy
func gormError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NewRepoError(domain.RepoNotFound, op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.NewRepoError(domain.RepoConstraint, op, err)
	}
	return domain.NewRepoError(domain.RepoInternal, op, err)
}
