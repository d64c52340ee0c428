package app

import (
	"context"
	"encoding/json"
	"errors"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/transport"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ReadResult payload of a read_message response
type ReadResult struct {
	PartnerID string `json:"partner_id"`
	Updated   int    `json:"updated"`
}

// ChatWebsocketHandler server side of the chat socket
type ChatWebsocketHandler struct {
	service  *ChatService
	presence *PresenceDirectory
	cfg      config.TransportConfig
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(service *ChatService, presence *PresenceDirectory, cfg config.TransportConfig) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		service:  service,
		presence: presence,
		cfg:      cfg.WithDefaults(),
	}
}

// sessionHandle presence entry of one socket
type sessionHandle struct {
	*transport.Session
	userID string
}

func (h sessionHandle) UserID() string { return h.userID }

// HandleConnection WebSocket 連線的進入點, blocks until the socket is closed.
// conn is a *websocket.Conn in production.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, userID string, conn transport.Conn) {
	if userID == "" {
		logger.Log.Warn("websocket without user id, closing")
		_ = conn.WriteMessage(transport.CloseMessage, transport.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		_ = conn.Close()
		return
	}

	var session *transport.Session
	session = transport.NewSession(conn, h.cfg, func(data []byte) {
		h.onFrame(ctx, session, userID, data)
	})
	handle := sessionHandle{Session: session, userID: userID}

	h.presence.Register(handle)
	logger.Log.Info("websocket open", zap.String("userID", userID), zap.String("connID", session.ID()))
	defer func() {
		h.presence.Unregister(userID, session.ID())
		logger.Log.Info("websocket close", zap.String("userID", userID), zap.String("connID", session.ID()))
	}()

	err := session.Run()
	switch {
	case err == nil:
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	), isTransportClose(err):
		logger.Log.Debug("connection closed by peer", zap.String("userID", userID), zap.Error(err))
	default:
		//直接斷線 1006 or pong timeout
		logger.Log.Warn("websocket read error", zap.String("userID", userID), zap.Error(err))
	}
}

func isTransportClose(err error) bool {
	var ce *transport.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == transport.CloseNormalClosure || ce.Code == transport.CloseGoingAway || ce.Code == transport.CloseNoStatus
}

// onFrame decode one inbound frame, actions are answered in order on the read goroutine
func (h *ChatWebsocketHandler) onFrame(ctx context.Context, session *transport.Session, userID string, data []byte) {
	frame, err := domain.DecodeFrame(data)
	if err != nil {
		h.reply(session, domain.FrameError, domain.WSResponse{
			Error:     err.Error(),
			ErrorKind: domain.KindInvalidArgument,
		})
		return
	}
	if frame.Type != domain.FrameAction {
		h.reply(session, domain.FrameError, domain.WSResponse{
			Error:     "unsupported frame type " + string(frame.Type),
			ErrorKind: domain.KindInvalidArgument,
		})
		return
	}

	var req domain.WSRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		h.reply(session, domain.FrameError, domain.WSResponse{
			Error:     "invalid action: " + err.Error(),
			ErrorKind: domain.KindInvalidArgument,
		})
		return
	}

	reqCtx, cancel := context.WithTimeout(WithConnectionID(ctx, session.ID()), h.cfg.RequestTimeout)
	defer cancel()

	payload, err := h.execAction(reqCtx, userID, req)
	resp := domain.WSResponse{
		Action:    req.Action,
		RequestID: req.RequestID,
		Success:   err == nil,
		Payload:   payload,
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = domain.KindOf(err)
		logger.Log.Debug("websocket action failed",
			zap.String("userID", userID),
			zap.String("action", req.Action),
			zap.Error(err),
		)
	}
	h.reply(session, domain.FrameResponse, resp)
}

func (h *ChatWebsocketHandler) execAction(ctx context.Context, userID string, req domain.WSRequest) (interface{}, error) {
	opts := domain.ListOptions{Limit: req.Limit, Offset: req.Offset, Order: req.Order}

	switch domain.Action(req.Action) {
	case domain.SendMessage:
		return h.service.SendMessage(ctx, userID, req.RecipientID, req.Body)
	case domain.ReadMessage:
		n, err := h.service.MarkMessagesAsRead(ctx, userID, req.PartnerID)
		if err != nil {
			return nil, err
		}
		return ReadResult{PartnerID: req.PartnerID, Updated: n}, nil
	case domain.GetPartners:
		return h.service.GetConversationPartnerPreviews(ctx, userID, opts)
	case domain.GetMessages:
		return h.service.GetMessages(ctx, userID, req.PartnerID, opts)
	case domain.DeleteMessages:
		return h.service.DeleteMessages(ctx, userID, req.MessageIDs)
	}
	return nil, domain.NewError(domain.KindInvalidArgument, "websocket", "unknown action "+req.Action, nil)
}

func (h *ChatWebsocketHandler) reply(session *transport.Session, t domain.FrameType, resp domain.WSResponse) {
	frame, err := domain.NewFrame(t, resp)
	if err != nil {
		logger.Log.Error("encode response failed", zap.Error(err))
		return
	}
	data, err := frame.Encode()
	if err != nil {
		logger.Log.Error("encode response failed", zap.Error(err))
		return
	}
	if err := session.Send(data); err != nil {
		logger.Log.Warn("response dropped", zap.String("connID", session.ID()), zap.Error(err))
	}
}
