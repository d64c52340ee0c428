package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMessageRepository mongo MessageRepository, one document per message
type MongoMessageRepository struct {
	coll  *mongo.Collection
	users UserDirectory
	clock *senderClock
}

// NewMongoMessageRepository create MongoMessageRepository over db.direct_messages
func NewMongoMessageRepository(db *mongo.Database, users UserDirectory) *MongoMessageRepository {
	return &MongoMessageRepository{
		coll:  db.Collection("direct_messages"),
		users: users,
		// BSON datetimes keep milliseconds
		clock: newSenderClock(time.Millisecond),
	}
}

// EnsureIndexes create the pair / recipient indexes
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	return err
}

// visibleBetweenFilter messages of the pair userID can still see
func visibleBetweenFilter(userID, partnerID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender_id": userID, "recipient_id": partnerID, "sender_deleted": false},
		bson.M{"sender_id": partnerID, "recipient_id": userID, "recipient_deleted": false},
	}}
}

func unreadFilter(senderID, recipientID string) bson.M {
	return bson.M{
		"sender_id":         senderID,
		"recipient_id":      recipientID,
		"is_read":           false,
		"recipient_deleted": false,
	}
}

// Create insert one message
func (r *MongoMessageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	const op = "mongo.Create"
	if err := validateNew(op, msg); err != nil {
		return nil, err
	}
	if err := checkParties(ctx, op, r.users, msg); err != nil {
		return nil, err
	}

	doc := domain.Message{
		ID:          uuid.NewString(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		CreatedAt:   r.clock.Next(msg.SenderID),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, mongoError(op, err)
	}
	return &doc, nil
}

// GetByID get message by id
func (r *MongoMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, mongoError("mongo.GetByID", err)
	}
	return &m, nil
}

// GetUnread oldest first
func (r *MongoMessageRepository) GetUnread(ctx context.Context, senderID, recipientID string) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, "mongo.GetUnread", unreadFilter(senderID, recipientID), opts)
}

// MarkAsRead conditional UpdateMany
func (r *MongoMessageRepository) MarkAsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	ids = pkg.Unique(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, mongoError("mongo.MarkAsRead", err)
	}
	return int(res.ModifiedCount), nil
}

// SoftDelete flag each role independently
func (r *MongoMessageRepository) SoftDelete(ctx context.Context, ids []string, deletingUserID string) (int, int, error) {
	const op = "mongo.SoftDelete"
	ids = pkg.Unique(ids)
	if len(ids) == 0 {
		return 0, 0, nil
	}

	sent, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "sender_id": deletingUserID, "sender_deleted": false},
		bson.M{"$set": bson.M{"sender_deleted": true}},
	)
	if err != nil {
		return 0, 0, mongoError(op, err)
	}
	received, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "recipient_id": deletingUserID, "recipient_deleted": false},
		bson.M{"$set": bson.M{"recipient_deleted": true}},
	)
	if err != nil {
		return int(sent.ModifiedCount), 0, mongoError(op, err)
	}
	return int(sent.ModifiedCount), int(received.ModifiedCount), nil
}

// ListConversation page of the pair's messages visible to userID
func (r *MongoMessageRepository) ListConversation(ctx context.Context, userID, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	opts = opts.Normalize(domain.OrderAsc)
	dir := 1
	if opts.Order == domain.OrderDesc {
		dir = -1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))
	return r.find(ctx, "mongo.ListConversation", visibleBetweenFilter(userID, partnerID), findOpts)
}

// PartnerIDs two Distinct calls, one per direction
func (r *MongoMessageRepository) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	const op = "mongo.PartnerIDs"
	recipients, err := r.coll.Distinct(ctx, "recipient_id", bson.M{"sender_id": userID, "sender_deleted": false})
	if err != nil {
		return nil, mongoError(op, err)
	}
	senders, err := r.coll.Distinct(ctx, "sender_id", bson.M{"recipient_id": userID, "recipient_deleted": false})
	if err != nil {
		return nil, mongoError(op, err)
	}

	ids := make([]string, 0, len(recipients)+len(senders))
	for _, v := range append(recipients, senders...) {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	ids = pkg.Unique(ids)
	sort.Strings(ids)
	return ids, nil
}

// LastVisibleMessage newest visible message of the pair
func (r *MongoMessageRepository) LastVisibleMessage(ctx context.Context, userID, partnerID string) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var m domain.Message
	if err := r.coll.FindOne(ctx, visibleBetweenFilter(userID, partnerID), opts).Decode(&m); err != nil {
		return nil, mongoError("mongo.LastVisibleMessage", err)
	}
	return &m, nil
}

// CountUnread count unread sender -> recipient
func (r *MongoMessageRepository) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, unreadFilter(senderID, recipientID))
	if err != nil {
		return 0, mongoError("mongo.CountUnread", err)
	}
	return int(n), nil
}

// AggregatePreviews one pipeline for the whole conversation list
func (r *MongoMessageRepository) AggregatePreviews(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	opts = opts.Normalize(domain.OrderDesc)
	dir := -1
	if opts.Order == domain.OrderAsc {
		dir = 1
	}

	pipeline := mongo.Pipeline{
		// 1. 只留下 userID 看得到的訊息
		bson.D{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID, "sender_deleted": false},
			bson.M{"recipient_id": userID, "recipient_deleted": false},
		}}}},
		// 2. 算出對方 id
		bson.D{{Key: "$addFields", Value: bson.M{
			"partner_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}}, "$recipient_id", "$sender_id",
			}},
		}}},
		// 3. 新的在前, $first 才會拿到最後一則
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		// 4. 依對方分組
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$partner_id"},
			{Key: "last_message_time", Value: bson.M{"$first": "$created_at"}},
			{Key: "last_body", Value: bson.M{"$first": "$body"}},
			{Key: "last_sender_id", Value: bson.M{"$first": "$sender_id"}},
			{Key: "last_is_read", Value: bson.M{"$first": "$is_read"}},
			{Key: "unread_count", Value: bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient_id", userID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}}, 1, 0,
			}}}},
		}}},
		// 5. 排序 + 分頁, 同時間以 partner id 升冪
		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message_time", Value: dir}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$skip", Value: int64(opts.Offset)}},
		bson.D{{Key: "$limit", Value: int64(opts.Limit)}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongoError("mongo.AggregatePreviews", err)
	}

	type result struct {
		PartnerID       string    `bson:"_id"`
		LastMessageTime time.Time `bson:"last_message_time"`
		LastBody        string    `bson:"last_body"`
		LastSenderID    string    `bson:"last_sender_id"`
		LastIsRead      bool      `bson:"last_is_read"`
		UnreadCount     int       `bson:"unread_count"`
	}
	var results []result
	if err := cur.All(ctx, &results); err != nil {
		return nil, mongoError("mongo.AggregatePreviews", err)
	}

	out := make([]domain.ConversationPartnerSummary, 0, len(results))
	for _, res := range results {
		out = append(out, domain.ConversationPartnerSummary{
			PartnerID:           res.PartnerID,
			UnreadCount:         res.UnreadCount,
			LastMessageTime:     res.LastMessageTime.UTC(),
			LastMessageSnippet:  domain.Snippet(res.LastBody),
			LastMessageSenderID: res.LastSenderID,
			LastMessageIsRead:   res.LastIsRead,
		})
	}
	return out, nil
}

// Ping check the collection's client
func (r *MongoMessageRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoMessageRepository) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]domain.Message, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError(op, err)
	}
	out := []domain.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoError(op, err)
	}
	return out, nil
}

func mongoError(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NewRepoError(domain.RepoNotFound, op, err)
	}
	return domain.NewRepoError(domain.RepoInternal, op, err)
}
