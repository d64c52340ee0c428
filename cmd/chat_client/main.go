package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"direct_message_service/internal/chat/client"
	"direct_message_service/internal/chat/transport"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/logger"
	"direct_message_service/pkg/middlewares"
	"direct_message_service/pkg/token"

	"go.uber.org/zap"
)

const usage = `commands:
  /open <partner>     load and read a conversation
  /list               show partners
  /retry <client_id>  resend a failed message
  /drop <client_id>   discard a failed message
  /quit
  <recipient>: <text> send a message`

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.ChatClient](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tok := cfg.Token
	if tok == "" && cfg.JWTSecret != "" {
		// dev only: mint our own token
		var err error
		tok, err = token.NewSigner(cfg.JWTSecret, 0).GenerateJWT(cfg.UserID, token.RoleMember, config.EnvConfig.ChatClient)
		if err != nil {
			logger.Log.Fatal("generate token", zap.Error(err))
		}
	}

	tc := cfg.Transport.WithDefaults()
	state := client.NewClientChatState(cfg.UserID, client.NewRESTChatAPI(cfg.ServerURL, tok, tc.RequestTimeout), tc.RequestTimeout)
	state.OnError(func(err error) { fmt.Println("error:", err) })

	unread := -1
	state.Subscribe(func(s client.Snapshot) {
		if s.TotalUnread != unread {
			unread = s.TotalUnread
			fmt.Printf("[unread] %d\n", unread)
		}
	})

	wsURL := fmt.Sprintf("%s?%s=%s", cfg.WSURL, middlewares.QueryToken, url.QueryEscape(tok))
	manager := transport.NewConnectionManager(transport.NewWebsocketDialer(tc.ConnectTimeout), wsURL, nil, tc)
	manager.OnStateChange(func(s transport.State) { fmt.Println("[connection]", s) })
	manager.Subscribe(state.Observer())
	manager.Subscribe(transport.ObserverFunc(func(data []byte) {
		logger.Log.Debug("frame", zap.ByteString("data", data))
	}))

	if err := manager.Connect(ctx); err != nil {
		logger.Log.Fatal("connect", zap.String("url", cfg.WSURL), zap.Error(err))
	}
	defer manager.Disconnect()

	if err := state.LoadPartners(ctx); err != nil {
		fmt.Println("load partners:", err)
	}
	printPartners(state.Snapshot())
	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !handleLine(ctx, state, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handleLine run one command, false means quit
func handleLine(ctx context.Context, state *client.ClientChatState, line string) bool {
	switch {
	case line == "":
	case line == "/quit":
		return false
	case line == "/list":
		printPartners(state.Snapshot())
	case strings.HasPrefix(line, "/open "):
		partner := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
		if err := state.SelectConversation(ctx, partner); err != nil {
			fmt.Println("open:", err)
			return true
		}
		for _, m := range state.Messages(partner) {
			fmt.Println(m)
		}
	case strings.HasPrefix(line, "/retry "):
		if _, err := state.Retry(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/retry "))); err != nil {
			fmt.Println("retry:", err)
		}
	case strings.HasPrefix(line, "/drop "):
		if err := state.Discard(strings.TrimSpace(strings.TrimPrefix(line, "/drop "))); err != nil {
			fmt.Println("drop:", err)
		}
	default:
		recipient, body, ok := strings.Cut(line, ":")
		if !ok {
			fmt.Println(usage)
			return true
		}
		msg, err := state.SendMessage(ctx, strings.TrimSpace(recipient), strings.TrimSpace(body))
		if err != nil {
			fmt.Println("send:", err)
			return true
		}
		fmt.Println(msg)
	}
	return true
}

func printPartners(s client.Snapshot) {
	fmt.Printf("unread: %d\n", s.TotalUnread)
	for _, p := range s.Partners {
		fmt.Printf("  %-12s %3d unread  %s\n", p.PartnerID, p.UnreadCount, p.LastMessageSnippet)
	}
}
