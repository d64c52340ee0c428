package app

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRESTApp chat routes behind a header based identity
func newRESTApp(svc *ChatService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals(middlewares.TokenUserID, c.Get("X-User"))
		return c.Next()
	})
	NewChatHandler(svc, time.Second).Routes(group)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, user string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestChatHandler_Flow(t *testing.T) {
	svc, _, _ := memoryService(nil)
	app := newRESTApp(svc)

	var msg domain.Message
	status := doJSON(t, app, "POST", "/api/v1/chat/messages", "a", SendMessageReq{RecipientID: "b", Body: "hi"}, &msg)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "a", msg.SenderID)

	var unread UnreadTotalRes
	status = doJSON(t, app, "GET", "/api/v1/chat/unread", "b", nil, &unread)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, unread.TotalUnread)

	var previews []domain.ConversationPartnerSummary
	status = doJSON(t, app, "GET", "/api/v1/chat/conversations?limit=10&order=desc", "b", nil, &previews)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, previews, 1)
	assert.Equal(t, "a", previews[0].PartnerID)
	assert.Equal(t, 1, previews[0].UnreadCount)

	var msgs []domain.Message
	status = doJSON(t, app, "GET", "/api/v1/chat/conversations/a/messages", "b", nil, &msgs)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	var read ReadResult
	status = doJSON(t, app, "POST", "/api/v1/chat/conversations/a/read", "b", nil, &read)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, read.Updated)
	doJSON(t, app, "POST", "/api/v1/chat/conversations/a/read", "b", nil, &read)
	assert.Equal(t, 0, read.Updated)

	var del DeleteResult
	status = doJSON(t, app, "POST", "/api/v1/chat/messages/delete", "b", DeleteMessagesReq{MessageIDs: []string{msg.ID}}, &del)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, DeleteResult{RecipientFlagged: 1}, del)

	// still visible to the sender
	status = doJSON(t, app, "GET", "/api/v1/chat/conversations/b/messages", "a", nil, &msgs)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, msgs, 1)
}

func TestChatHandler_ErrorMapping(t *testing.T) {
	svc, _, _ := memoryService(nil)
	app := newRESTApp(svc)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   domain.ErrorKind
	}{
		{"self send", "POST", "/api/v1/chat/messages", SendMessageReq{RecipientID: "a", Body: "hi"}, fiber.StatusBadRequest, domain.KindInvalidArgument},
		{"banned recipient", "POST", "/api/v1/chat/messages", SendMessageReq{RecipientID: "x", Body: "hi"}, fiber.StatusForbidden, domain.KindForbidden},
		{"unknown recipient", "POST", "/api/v1/chat/messages", SendMessageReq{RecipientID: "nobody", Body: "hi"}, fiber.StatusNotFound, domain.KindNotFound},
		{"banned partner", "GET", "/api/v1/chat/conversations/x/messages", nil, fiber.StatusForbidden, domain.KindForbidden},
		{"empty delete", "POST", "/api/v1/chat/messages/delete", DeleteMessagesReq{}, fiber.StatusBadRequest, domain.KindInvalidArgument},
		{"bad paging", "GET", "/api/v1/chat/conversations?limit=abc", nil, fiber.StatusBadRequest, domain.KindInvalidArgument},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var res ErrorRes
			status := doJSON(t, app, c.method, c.path, "a", c.body, &res)
			assert.Equal(t, c.status, status)
			assert.Equal(t, c.kind, res.ErrorKind)
			assert.NotEmpty(t, res.Error)
		})
	}
}
