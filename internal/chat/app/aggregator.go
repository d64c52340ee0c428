package app

import (
	"context"
	"sort"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/repository"
	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// ConversationAggregator builds the per-user conversation list
type ConversationAggregator struct {
	repo  repository.MessageRepository
	users repository.UserDirectory
}

// NewConversationAggregator create ConversationAggregator
func NewConversationAggregator(repo repository.MessageRepository, users repository.UserDirectory) *ConversationAggregator {
	return &ConversationAggregator{repo: repo, users: users}
}

// GetPartnerPreviews partners of userID sorted by last message time (desc by default),
// ties broken by partner id ascending, then paged
func (a *ConversationAggregator) GetPartnerPreviews(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	opts = opts.Normalize(domain.OrderDesc)

	var (
		out []domain.ConversationPartnerSummary
		err error
	)
	if agg, ok := a.repo.(repository.PreviewAggregator); ok {
		out, err = agg.AggregatePreviews(ctx, userID, opts)
	} else {
		out, err = a.pointQueries(ctx, userID, opts)
	}
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Partner = a.partner(ctx, out[i].PartnerID)
	}
	return out, nil
}

// pointQueries one small query per partner
func (a *ConversationAggregator) pointQueries(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	summaries, err := a.summaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		ti, tj := summaries[i].LastMessageTime, summaries[j].LastMessageTime
		if !ti.Equal(tj) {
			if opts.Order == domain.OrderAsc {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
		return summaries[i].PartnerID < summaries[j].PartnerID
	})

	if opts.Offset >= len(summaries) {
		return []domain.ConversationPartnerSummary{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(summaries) {
		end = len(summaries)
	}
	return summaries[opts.Offset:end], nil
}

// summaries every partner of userID, without display metadata
func (a *ConversationAggregator) summaries(ctx context.Context, userID string) ([]domain.ConversationPartnerSummary, error) {
	partnerIDs, err := a.repo.PartnerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConversationPartnerSummary, 0, len(partnerIDs))
	for _, partnerID := range partnerIDs {
		last, err := a.repo.LastVisibleMessage(ctx, userID, partnerID)
		if err != nil {
			if domain.IsRepoKind(err, domain.RepoNotFound) {
				// deleted between the two queries
				continue
			}
			return nil, err
		}
		unread, err := a.repo.CountUnread(ctx, partnerID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ConversationPartnerSummary{
			PartnerID:           partnerID,
			UnreadCount:         unread,
			LastMessageTime:     last.CreatedAt,
			LastMessageSnippet:  domain.Snippet(last.Body),
			LastMessageSenderID: last.SenderID,
			LastMessageIsRead:   last.IsRead,
		})
	}
	return out, nil
}

// UnreadTotal sum of unread counts over every partner of userID
func (a *ConversationAggregator) UnreadTotal(ctx context.Context, userID string) (int, error) {
	partnerIDs, err := a.repo.PartnerIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, partnerID := range partnerIDs {
		n, err := a.repo.CountUnread(ctx, partnerID, userID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// partner display metadata, a directory failure keeps the row with the bare id
func (a *ConversationAggregator) partner(ctx context.Context, partnerID string) domain.UserSummary {
	u, err := a.users.GetUser(ctx, partnerID)
	if err != nil {
		logger.Log.Warn("partner lookup failed", zap.String("partnerID", partnerID), zap.Error(err))
		return domain.UserSummary{UserID: partnerID, DisplayName: partnerID}
	}
	return u
}
