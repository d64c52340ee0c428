package main

import (
	"context"
	"fmt"
	"time"

	"direct_message_service/internal/chat/app"
	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/repository"
	"direct_message_service/pkg"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/database"
	"direct_message_service/pkg/eventbus"
	"direct_message_service/pkg/health"
	"direct_message_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var knownStores = []string{config.StorePostgres, config.StoreMongo, config.StoreMemory}

// newRedis standalone when addr is set, sentinel when REDIS_SENTINEL* is in the env, else nil
func newRedis(c config.RedisConfig) *redis.Client {
	if c.Addr != "" {
		client, err := database.NewRedisStandaloneClient(c.Addr, c.RedisDB)
		if err != nil {
			logger.Log.Fatal("connect redis", zap.Error(err))
		}
		return client
	}
	masterName, sentinel := config.GetRedisSetting()
	if len(sentinel) == 0 {
		logger.Log.Info("redis not configured, relay and user cache disabled")
		return nil
	}
	client, err := database.NewRedisClient(masterName, sentinel, c.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	return client
}

func pgDSN(c config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
}

func connection(dsn string, c config.DatabaseConfig) database.Connection {
	return database.Connection{
		ConnectStr:    dsn,
		RetryCount:    c.RetryCount,
		RetryInterval: time.Duration(c.RetryInterval),
	}
}

// newUserDirectory member table through pgx, cached in redis when available.
// Without pg the seed users form an in-memory directory.
func newUserDirectory(cfg config.Chat, client *redis.Client) (repository.UserDirectory, func()) {
	if cfg.PostgreSQL.Host == "" {
		seeds := make([]domain.UserSummary, 0, len(cfg.SeedUsers))
		for _, id := range cfg.SeedUsers {
			seeds = append(seeds, domain.UserSummary{UserID: id, DisplayName: id, Status: domain.UserStatusOffline})
		}
		logger.Log.Info("using in-memory user directory", zap.Int("users", len(seeds)))
		return repository.NewMemoryUserDirectory(seeds...), func() {}
	}

	pool, err := database.NewDatabaseConnection(connection(pgDSN(cfg.PostgreSQL), cfg.PostgreSQL))
	if err != nil {
		logger.Log.Fatal("Unable to connect to member database after retries", zap.Error(err))
	}

	var users repository.UserDirectory = repository.NewPGUserDirectory(pool)
	if client != nil {
		cache := database.NewRedisRepository[domain.UserSummary](client, repository.UserCachePrefix)
		users = repository.NewCachedUserDirectory(users, cache, cfg.Redis.UserCacheTTL)
	}
	return users, pool.Close
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newMessageRepository pick the store backend by cfg.Store
func newMessageRepository(ctx context.Context, cfg config.Chat, users repository.UserDirectory, hs *health.Server) (repository.MessageRepository, func()) {
	var (
		repo    repository.MessageRepository
		closeFn = func() {}
	)

	if cfg.Store != "" && !pkg.Contains(knownStores, cfg.Store) {
		logger.Log.Fatal("unknown store", zap.String("store", cfg.Store), zap.Strings("known", knownStores))
	}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.NewPGConnection(connection(pgDSN(cfg.PostgreSQL), cfg.PostgreSQL))
		if err != nil {
			logger.Log.Fatal("Unable to connect to postgreSQL message store", zap.Error(err))
		}
		gormRepo := repository.NewGormMessageRepository(db, users)
		if err := gormRepo.AutoMigrate(); err != nil {
			logger.Log.Fatal("auto migrate direct_messages", zap.Error(err))
		}
		if sqlDB, err := db.DB(); err == nil {
			closeFn = func() { _ = sqlDB.Close() }
		}
		repo = gormRepo

	case config.StoreMongo:
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongo, err := database.NewMongoDB(ctx, connection(uri, cfg.MongoSQL), cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to mongoDB database after retries",
				zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
				zap.Error(err),
			)
		}
		mongoRepo := repository.NewMongoMessageRepository(mongo.Database, users)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Log.Fatal("ensure mongo indexes", zap.Error(err))
		}
		closeFn = func() { _ = mongo.Close(context.Background()) }
		repo = mongoRepo

	default:
		logger.Log.Warn("using in-memory message store, data is lost on restart", zap.String("store", cfg.Store))
		repo = repository.NewMemoryMessageRepository(users)
	}

	if p, ok := repo.(pinger); ok {
		hs.AddProbe("store", p.Ping)
	}
	return repo, closeFn
}

// eventWiring local bus plus the optional relay and sinks hanging off it
type eventWiring struct {
	bus       *eventbus.Bus
	publisher app.Publisher
	notifier  app.OfflineNotifier
	closers   []func()
}

func newEventWiring(ctx context.Context, cfg config.Chat, client *redis.Client) *eventWiring {
	w := &eventWiring{bus: eventbus.New()}
	w.publisher = eventbus.NewPublisher[domain.Event](w.bus)

	// cross-node relay: publish to redis, every node re-emits into its own bus
	if client != nil && cfg.Redis.Relay {
		relay := repository.NewRedisPubSub(client)
		go func() {
			if err := relay.Run(ctx, w.bus); err != nil {
				logger.Log.Error("redis relay stopped", zap.Error(err))
			}
		}()
		w.publisher = relay
	}

	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("kafka writer", zap.Error(err))
		}
		sink := app.NewKafkaEventSink(writer, 0)
		unsubscribe := sink.Subscribe(w.bus)
		sinkCtx, cancel := context.WithCancel(context.Background())
		go sink.Run(sinkCtx)
		w.closers = append(w.closers, func() {
			unsubscribe()
			cancel()
			if err := sink.Close(); err != nil {
				logger.Log.Warn("kafka sink close", zap.Error(err))
			}
		})
	}

	if cfg.RabbitMQ.Host != "" {
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port),
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("rabbitmq connect", zap.Error(err))
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
		if err != nil {
			logger.Log.Fatal("rabbitmq channel", zap.Error(err))
		}
		if err := app.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			logger.Log.Fatal("rabbitmq declare queue", zap.Error(err))
		}
		w.notifier = app.NewRabbitOfflineNotifier(ch, cfg.RabbitMQ.Queue)
		w.closers = append(w.closers, func() {
			_ = ch.Close()
			_ = conn.Close()
		})
	}
	return w
}

func (w *eventWiring) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
}
