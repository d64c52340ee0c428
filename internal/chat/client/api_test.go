package client

import (
	"context"
	"net"
	"testing"
	"time"

	"direct_message_service/internal/chat/app"
	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/repository"
	"direct_message_service/pkg/middlewares"
	"direct_message_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer chat REST endpoints on a loopback port
func startServer(t *testing.T) (baseURL string, signer *token.Signer) {
	t.Helper()
	users := repository.NewMemoryUserDirectory(
		domain.UserSummary{UserID: "alice", DisplayName: "alice", Status: domain.UserStatusOnline},
		domain.UserSummary{UserID: "bob", DisplayName: "bob", Status: domain.UserStatusOnline},
		domain.UserSummary{UserID: "mallory", DisplayName: "mallory", Status: domain.UserStatusBanned},
	)
	svc := app.NewChatService(repository.NewMemoryMessageRepository(users), users, nil)
	signer = token.NewSigner("test-secret", time.Minute)

	server := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.NewChatHandler(svc, time.Second).Routes(server.Group("/api/v1/chat", middlewares.JWTMiddleware(signer)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Listener(ln) }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return "http://" + ln.Addr().String(), signer
}

func apiFor(t *testing.T, baseURL string, signer *token.Signer, userID string) *RESTChatAPI {
	t.Helper()
	tok, err := signer.GenerateJWT(userID, token.RoleMember, "test")
	require.NoError(t, err)
	return NewRESTChatAPI(baseURL, tok, 2*time.Second)
}

func TestRESTChatAPI_RoundTrip(t *testing.T) {
	baseURL, signer := startServer(t)
	alice := apiFor(t, baseURL, signer, "alice")
	bob := apiFor(t, baseURL, signer, "bob")
	ctx := context.Background()

	sent, err := alice.SendMessage(ctx, "bob", "hi bob")
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)

	previews, err := bob.GetConversationPartnerPreviews(ctx, domain.ListOptions{Order: domain.OrderDesc})
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, 1, previews[0].UnreadCount)

	msgs, err := bob.GetMessages(ctx, "alice", domain.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)

	n, err := bob.MarkMessagesAsRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRESTChatAPI_Errors(t *testing.T) {
	baseURL, signer := startServer(t)
	alice := apiFor(t, baseURL, signer, "alice")
	ctx := context.Background()

	_, err := alice.SendMessage(ctx, "mallory", "hi")
	assert.True(t, domain.IsKind(err, domain.KindForbidden), "got %v", err)

	_, err = alice.SendMessage(ctx, "nobody", "hi")
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)

	anonymous := NewRESTChatAPI(baseURL, "garbage", time.Second)
	_, err = anonymous.GetConversationPartnerPreviews(ctx, domain.ListOptions{})
	assert.True(t, domain.IsKind(err, domain.KindInternal), "got %v", err)

	expired, cancel := context.WithCancel(ctx)
	cancel()
	_, err = alice.GetMessages(expired, "bob", domain.ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRESTChatAPI_DrivesClientState(t *testing.T) {
	baseURL, signer := startServer(t)
	ctx := context.Background()

	_, err := apiFor(t, baseURL, signer, "bob").SendMessage(ctx, "alice", "ping me")
	require.NoError(t, err)

	state := NewClientChatState("alice", apiFor(t, baseURL, signer, "alice"), time.Second)
	require.NoError(t, state.LoadPartners(ctx))
	assert.Equal(t, 1, state.Snapshot().TotalUnread)

	require.NoError(t, state.SelectConversation(ctx, "bob"))
	snap := state.Snapshot()
	assert.Equal(t, 0, snap.TotalUnread)
	require.Len(t, snap.Conversation, 1)

	_, err = state.SendMessage(ctx, "bob", "pong")
	require.NoError(t, err)
	assert.Len(t, state.Messages("bob"), 2)

	_, err = state.SendMessage(ctx, "mallory", "hey")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
	assert.Empty(t, state.Messages("mallory"))
}
