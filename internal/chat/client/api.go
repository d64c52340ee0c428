// Package client chat client: local conversation state kept in sync with the server
// through REST calls and websocket pushes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"direct_message_service/internal/chat/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// ChatAPI request/response surface the client state calls
type ChatAPI interface {
	GetConversationPartnerPreviews(ctx context.Context, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error)
	GetMessages(ctx context.Context, partnerID string, opts domain.ListOptions) ([]domain.Message, error)
	SendMessage(ctx context.Context, recipientID, body string) (*domain.Message, error)
	MarkMessagesAsRead(ctx context.Context, partnerID string) (int, error)
}

// RESTChatAPI ChatAPI over the chat REST endpoints
type RESTChatAPI struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewRESTChatAPI baseURL like http://localhost:8080, timeout bounds calls without a ctx deadline
func NewRESTChatAPI(baseURL, token string, timeout time.Duration) *RESTChatAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTChatAPI{baseURL: baseURL, token: token, timeout: timeout}
}

type errorBody struct {
	Error     string           `json:"error"`
	ErrorKind domain.ErrorKind `json:"error_kind"`
}

func (a *RESTChatAPI) do(ctx context.Context, agent *fiber.Agent, op string, out interface{}) error {
	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return err
	}
	if timeout <= 0 {
		fiber.ReleaseAgent(agent)
		return context.DeadlineExceeded
	}

	agent.Set(fiber.HeaderAuthorization, "Bearer "+a.token)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return domain.NewError(domain.KindInvalidArgument, op, "invalid url", err)
	}

	// Bytes releases the agent
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if errors.Is(err, fasthttp.ErrTimeout) {
			return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
		}
		return domain.NewError(domain.KindInternal, op, "request failed", err)
	}

	if code >= fiber.StatusBadRequest {
		var e errorBody
		if err := json.Unmarshal(body, &e); err != nil || e.ErrorKind == "" {
			return domain.NewError(domain.KindInternal, op, fmt.Sprintf("http %d: %s", code, body), nil)
		}
		return domain.NewError(e.ErrorKind, op, e.Error, nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewError(domain.KindInternal, op, "decode response", err)
	}
	return nil
}

func listQuery(opts domain.ListOptions) string {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Order != "" {
		q.Set("order", string(opts.Order))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// GetConversationPartnerPreviews GET /api/v1/chat/conversations
func (a *RESTChatAPI) GetConversationPartnerPreviews(ctx context.Context, opts domain.ListOptions) ([]domain.ConversationPartnerSummary, error) {
	var out []domain.ConversationPartnerSummary
	agent := fiber.Get(a.baseURL + "/api/v1/chat/conversations" + listQuery(opts))
	if err := a.do(ctx, agent, "GetConversationPartnerPreviews", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages GET /api/v1/chat/conversations/:partnerID/messages
func (a *RESTChatAPI) GetMessages(ctx context.Context, partnerID string, opts domain.ListOptions) ([]domain.Message, error) {
	var out []domain.Message
	agent := fiber.Get(a.baseURL + "/api/v1/chat/conversations/" + url.PathEscape(partnerID) + "/messages" + listQuery(opts))
	if err := a.do(ctx, agent, "GetMessages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage POST /api/v1/chat/messages
func (a *RESTChatAPI) SendMessage(ctx context.Context, recipientID, body string) (*domain.Message, error) {
	var out domain.Message
	agent := fiber.Post(a.baseURL + "/api/v1/chat/messages")
	agent.JSON(map[string]string{"recipient_id": recipientID, "body": body})
	if err := a.do(ctx, agent, "SendMessage", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkMessagesAsRead POST /api/v1/chat/conversations/:partnerID/read
func (a *RESTChatAPI) MarkMessagesAsRead(ctx context.Context, partnerID string) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	agent := fiber.Post(a.baseURL + "/api/v1/chat/conversations/" + url.PathEscape(partnerID) + "/read")
	if err := a.do(ctx, agent, "MarkMessagesAsRead", &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}
