//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/database"
	testtool "direct_message_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// **測試用的容器**
var (
	gormDB      *gorm.DB
	mongoDB     *database.MongoDB
	redisClient *redis.Client
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var containers []testcontainers.Container

	// **啟動 PostgreSQL**
	pg, pgHost, pgPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "chat",
			"POSTGRES_PASSWORD": "chat",
			"POSTGRES_DB":       "chat",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start PostgreSQL container: %v", err)
	}
	containers = append(containers, pg)

	// **啟動 MongoDB**
	mongoC, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start MongoDB container: %v", err)
	}
	containers = append(containers, mongoC)

	// **啟動 Redis**
	redisC, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}
	containers = append(containers, redisC)

	gormDB, err = database.NewPGConnection(database.Connection{
		ConnectStr:    fmt.Sprintf("postgres://chat:chat@%s:%s/chat?sslmode=disable", pgHost, pgPort),
		RetryCount:    5,
		RetryInterval: 1,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	if err := NewGormMessageRepository(gormDB, nil).AutoMigrate(); err != nil {
		log.Fatalf("❌ AutoMigrate: %v", err)
	}

	mongoDB, err = database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: 1,
	}, "test_chat_db")
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	redisClient, err = database.NewRedisStandaloneClient(redisHost+":"+redisPort, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	code := m.Run()

	_ = mongoDB.Close(ctx)
	_ = redisClient.Close()
	for _, c := range containers {
		_ = c.Terminate(ctx)
	}
	os.Exit(code)
}

func TestGormMessageRepository_Contract(t *testing.T) {
	runMessageRepositoryContract(t, func(t *testing.T) MessageRepository {
		require.NoError(t, gormDB.Exec("TRUNCATE TABLE direct_messages").Error)
		return NewGormMessageRepository(gormDB, testUsers())
	})
}

func TestMongoMessageRepository_Contract(t *testing.T) {
	runMessageRepositoryContract(t, func(t *testing.T) MessageRepository {
		ctx := context.Background()
		require.NoError(t, mongoDB.Database.Collection("direct_messages").Drop(ctx))
		repo := NewMongoMessageRepository(mongoDB.Database, testUsers())
		require.NoError(t, repo.EnsureIndexes(ctx))
		return repo
	})
}

func TestMongoMessageRepository_AggregatePreviews(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, mongoDB.Database.Collection("direct_messages").Drop(ctx))
	repo := NewMongoMessageRepository(mongoDB.Database, testUsers())

	mustCreate(t, repo, "c", "a", "old from c")
	mustCreate(t, repo, "a", "b", "1")
	mustCreate(t, repo, "b", "a", "2")
	mustCreate(t, repo, "b", "a", "latest from b")

	got, err := repo.AggregatePreviews(ctx, "a", domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].PartnerID)
	assert.Equal(t, 2, got[0].UnreadCount)
	assert.Equal(t, "latest from b", got[0].LastMessageSnippet)
	assert.Equal(t, "b", got[0].LastMessageSenderID)
	assert.Equal(t, "c", got[1].PartnerID)
	assert.Equal(t, 1, got[1].UnreadCount)

	asc, err := repo.AggregatePreviews(ctx, "a", domain.ListOptions{Order: domain.OrderAsc, Limit: 1})
	require.NoError(t, err)
	require.Len(t, asc, 1)
	assert.Equal(t, "c", asc[0].PartnerID)
}

// recordingEmitter collects relayed events
type recordingEmitter struct {
	events chan interface{}
}

func (e *recordingEmitter) Emit(ctx context.Context, name string, payload interface{}) {
	e.events <- payload
}

func TestRedisPubSub_Relay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRedisPubSub(redisClient)
	emitter := &recordingEmitter{events: make(chan interface{}, 1)}
	go func() { _ = relay.Run(ctx, emitter) }()
	// give PSubscribe a moment to register
	time.Sleep(200 * time.Millisecond)

	event := domain.MessageCreated{
		RecipientID: "b",
		Message:     domain.Message{ID: "m1", SenderID: "a", RecipientID: "b", Body: "hi", CreatedAt: time.Now().UTC().Truncate(time.Microsecond)},
	}
	require.NoError(t, relay.Publish(ctx, event))

	select {
	case got := <-emitter.events:
		assert.Equal(t, event, got)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not deliver the event")
	}
}

func TestCachedUserDirectory_Redis(t *testing.T) {
	ctx := context.Background()
	cache := database.NewRedisRepository[domain.UserSummary](redisClient, UserCachePrefix)
	users := testUsers()
	d := NewCachedUserDirectory(users, cache, time.Minute)

	u, err := d.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.DisplayName)

	// cached copy survives a directory change until invalidated
	users.SetStatus("b", domain.UserStatusBanned)
	u, err = d.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.True(t, u.Status.IsActive())

	require.NoError(t, d.Invalidate(ctx, "b"))
	u, err = d.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusBanned, u.Status)
}
