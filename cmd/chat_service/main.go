package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "direct_message_service/docs" // 引入生成的 Swagger 文档
	"direct_message_service/internal/chat/app"
	"direct_message_service/internal/chat/router"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/health"
	"direct_message_service/pkg/logger"
	testtool "direct_message_service/pkg/test_tool"
	"direct_message_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	testtool.StartPprof("localhost:6060")

	hs := health.NewServer(config.EnvConfig.ChatService)

	// 1. Redis (user cache + cross-node relay), optional
	redisClient := newRedis(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
		hs.AddProbe("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	// 2. user directory (member table) + message store
	users, closeUsers := newUserDirectory(cfg, redisClient)
	defer closeUsers()
	repo, closeRepo := newMessageRepository(ctx, cfg, users, hs)
	defer closeRepo()

	// 3. event fan-out
	w := newEventWiring(ctx, cfg, redisClient)
	defer w.close()

	service := app.NewChatService(repo, users, w.publisher)
	presence := app.NewPresenceDirectory()
	dispatcher := app.NewDeliveryDispatcher(presence, cfg.Delivery, w.notifier)
	dispatcher.Subscribe(w.bus)
	dispatcher.Start()
	defer dispatcher.Stop()

	// 4. grpc health
	go hs.Watch(ctx, 15*time.Second)
	go func() {
		if err := hs.Serve(":" + cfg.GRPCPort); err != nil {
			logger.Log.Error("grpc health server stopped", zap.Error(err))
		}
	}()
	defer hs.Stop()

	// 5. 啟動 Fiber
	r := fiber.New(fiber.Config{ReadTimeout: 30 * time.Second})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(ctx, r, token.NewSigner(cfg.JWTSecret, 0), router.Handlers{
		Chat:      app.NewChatHandler(service, cfg.Transport.RequestTimeout),
		Websocket: app.NewChatWebsocketHandler(service, presence, cfg.Transport),
		Health:    hs,
	})

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	// Listen
	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("store", cfg.Store))
	if err := r.Listen(port); err != nil {
		logger.Log.Error("Failed to start Fiber", zap.Error(err))
	}
}
