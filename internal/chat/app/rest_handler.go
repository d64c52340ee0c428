package app

import (
	"context"
	"time"

	"direct_message_service/internal/chat/domain"
	errprocess "direct_message_service/pkg/err"
	"direct_message_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SendMessageReq body of POST /chat/messages
type SendMessageReq struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// DeleteMessagesReq body of POST /chat/messages/delete
type DeleteMessagesReq struct {
	MessageIDs []string `json:"message_ids"`
}

// UnreadTotalRes response of GET /chat/unread
type UnreadTotalRes struct {
	TotalUnread int `json:"total_unread"`
}

// ErrorRes error body of every chat endpoint
type ErrorRes struct {
	Error     string           `json:"error"`
	ErrorKind domain.ErrorKind `json:"error_kind"`
}

// ChatHandler 处理聊天相关的 HTTP 请求
type ChatHandler struct {
	service *ChatService
	timeout time.Duration
}

// NewChatHandler create ChatHandler, timeout <= 0 uses 10s
func NewChatHandler(service *ChatService, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChatHandler{service: service, timeout: timeout}
}

// StatusOf chat error kind -> http status
func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindForbidden:
		return fiber.StatusForbidden
	case domain.KindConflictOrNoop:
		return fiber.StatusOK
	}
	return fiber.StatusInternalServerError
}

// Routes register the chat endpoints on r, r must already be authenticated
func (h *ChatHandler) Routes(r fiber.Router) {
	r.Get("/conversations", h.GetConversations)
	r.Get("/conversations/:partnerID/messages", h.GetMessages)
	r.Post("/conversations/:partnerID/read", h.MarkAsRead)
	r.Post("/messages", h.SendMessage)
	r.Post("/messages/delete", h.DeleteMessages)
	r.Get("/unread", h.GetUnreadTotal)
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		_ = errprocess.Log("chat request failed", err, zap.String("path", c.Path()))
	}
	return c.Status(status).JSON(ErrorRes{Error: err.Error(), ErrorKind: domain.KindOf(err)})
}

func (h *ChatHandler) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

func listOptions(c *fiber.Ctx) (domain.ListOptions, error) {
	var opts domain.ListOptions
	if err := c.QueryParser(&opts); err != nil {
		return opts, domain.NewError(domain.KindInvalidArgument, "query", "invalid paging parameters", err)
	}
	return opts, nil
}

// GetConversations godoc
// @Summary List conversation partners
// @Description Partners of the caller with last message preview and unread count, newest first by default
// @Tags Chat
// @Produce json
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Param order query string false "asc or desc"
// @Success 200 {array} domain.ConversationPartnerSummary
// @Failure 400 {object} ErrorRes
// @Failure 500 {object} ErrorRes
// @Router /api/v1/chat/conversations [get]
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx()
	defer cancel()

	res, err := h.service.GetConversationPartnerPreviews(ctx, middlewares.UserID(c), opts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// GetMessages godoc
// @Summary List messages with a partner
// @Description Messages between the caller and partnerID still visible to the caller, oldest first by default
// @Tags Chat
// @Produce json
// @Param partnerID path string true "Partner user id"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Param order query string false "asc or desc"
// @Success 200 {array} domain.Message
// @Failure 400 {object} ErrorRes
// @Failure 403 {object} ErrorRes "partner is banned"
// @Failure 404 {object} ErrorRes
// @Router /api/v1/chat/conversations/{partnerID}/messages [get]
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx()
	defer cancel()

	res, err := h.service.GetMessages(ctx, middlewares.UserID(c), c.Params("partnerID"), opts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// SendMessage godoc
// @Summary Send a direct message
// @Description Persist a message and push it to the recipient's live connections
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body SendMessageReq true "message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} ErrorRes
// @Failure 403 {object} ErrorRes "recipient banned or deleted"
// @Failure 404 {object} ErrorRes
// @Failure 500 {object} ErrorRes
// @Router /api/v1/chat/messages [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, domain.NewError(domain.KindInvalidArgument, "SendMessage", "invalid request", err))
	}
	ctx, cancel := h.ctx()
	defer cancel()

	msg, err := h.service.SendMessage(ctx, middlewares.UserID(c), req.RecipientID, req.Body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkAsRead godoc
// @Summary Mark a conversation as read
// @Description Mark every unread message partnerID sent to the caller as read. Repeating the call updates 0.
// @Tags Chat
// @Produce json
// @Param partnerID path string true "Partner user id"
// @Success 200 {object} ReadResult
// @Failure 400 {object} ErrorRes
// @Failure 500 {object} ErrorRes
// @Router /api/v1/chat/conversations/{partnerID}/read [post]
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	partnerID := c.Params("partnerID")
	ctx, cancel := h.ctx()
	defer cancel()

	n, err := h.service.MarkMessagesAsRead(ctx, middlewares.UserID(c), partnerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ReadResult{PartnerID: partnerID, Updated: n})
}

// DeleteMessages godoc
// @Summary Delete messages for the caller
// @Description Hide messages from the caller only, the other party still sees them
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body DeleteMessagesReq true "message ids"
// @Success 200 {object} DeleteResult
// @Failure 400 {object} ErrorRes
// @Failure 500 {object} ErrorRes
// @Router /api/v1/chat/messages/delete [post]
func (h *ChatHandler) DeleteMessages(c *fiber.Ctx) error {
	var req DeleteMessagesReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, domain.NewError(domain.KindInvalidArgument, "DeleteMessages", "invalid request", err))
	}
	ctx, cancel := h.ctx()
	defer cancel()

	res, err := h.service.DeleteMessages(ctx, middlewares.UserID(c), req.MessageIDs)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// GetUnreadTotal godoc
// @Summary Total unread count
// @Tags Chat
// @Produce json
// @Success 200 {object} UnreadTotalRes
// @Failure 500 {object} ErrorRes
// @Router /api/v1/chat/unread [get]
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	ctx, cancel := h.ctx()
	defer cancel()

	n, err := h.service.GetUnreadTotal(ctx, middlewares.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(UnreadTotalRes{TotalUnread: n})
}
