package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/transport"
	"direct_message_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageStatus local delivery state of a message
type MessageStatus string

const (
	// StatusPending sent optimistically, waiting for the server
	StatusPending MessageStatus = "pending"
	// StatusConfirmed persisted by the server
	StatusConfirmed MessageStatus = "confirmed"
	// StatusFailed the request timed out, Retry or Discard it
	StatusFailed MessageStatus = "failed"
)

// reconcileWindow a pushed echo of our own message adopts a pending entry sent within this window
const reconcileWindow = time.Minute

var (
	// ErrUnknownMessage no local entry with that client id
	ErrUnknownMessage = errors.New("unknown local message")
	// ErrNotFailed Retry / Discard on an entry that is not failed
	ErrNotFailed = errors.New("message is not failed")
)

// LocalMessage a message as the client shows it
type LocalMessage struct {
	domain.Message
	// ClientID provisional id, empty for messages that came from the server
	ClientID string        `json:"client_id,omitempty"`
	Status   MessageStatus `json:"status"`
}

// Snapshot copy of the state for rendering
type Snapshot struct {
	Partners     []domain.ConversationPartnerSummary
	Conversation []LocalMessage
	Active       string
	TotalUnread  int
}

// ClientChatState 客戶端聊天狀態. Every mutation goes through mu, network calls run outside it.
type ClientChatState struct {
	userID  string
	api     ChatAPI
	timeout time.Duration

	mu          sync.Mutex
	partners    []domain.ConversationPartnerSummary
	messages    map[string][]LocalMessage
	loaded      map[string]bool
	active      string
	totalUnread int
	listeners   []func(Snapshot)
	onError     func(error)
	now         func() time.Time
}

// NewClientChatState create ClientChatState for userID, timeout bounds each request (<= 0 uses 10s)
func NewClientChatState(userID string, api ChatAPI, timeout time.Duration) *ClientChatState {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClientChatState{
		userID:   userID,
		api:      api,
		timeout:  timeout,
		messages: make(map[string][]LocalMessage),
		loaded:   make(map[string]bool),
		now:      time.Now,
	}
}

// OnError callback for server errors that reverted local state
func (s *ClientChatState) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Subscribe fn runs after every change with a fresh snapshot
func (s *ClientChatState) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot current state
func (s *ClientChatState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages local messages with partnerID
func (s *ClientChatState) Messages(partnerID string) []LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LocalMessage(nil), s.messages[partnerID]...)
}

func (s *ClientChatState) snapshotLocked() Snapshot {
	return Snapshot{
		Partners:     append([]domain.ConversationPartnerSummary(nil), s.partners...),
		Conversation: append([]LocalMessage(nil), s.messages[s.active]...),
		Active:       s.active,
		TotalUnread:  s.totalUnread,
	}
}

// commit unlock and notify listeners, called with mu held
func (s *ClientChatState) commit() {
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *ClientChatState) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// LoadPartners replace the partner list from the server
func (s *ClientChatState) LoadPartners(ctx context.Context) error {
	rctx, cancel := s.requestCtx(ctx)
	defer cancel()
	partners, err := s.api.GetConversationPartnerPreviews(rctx, domain.ListOptions{Order: domain.OrderDesc, Limit: domain.MaxListLimit})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.partners = partners
	s.sortPartnersLocked()
	s.recomputeUnreadLocked()
	s.commit()
	return nil
}

// SelectConversation make partnerID active, load its messages once and mark them read
func (s *ClientChatState) SelectConversation(ctx context.Context, partnerID string) error {
	s.mu.Lock()
	s.active = partnerID
	needLoad := !s.loaded[partnerID]
	s.commit()

	if needLoad {
		rctx, cancel := s.requestCtx(ctx)
		// newest page first, mergeLoadedLocked restores ascending order
		msgs, err := s.api.GetMessages(rctx, partnerID, domain.ListOptions{Order: domain.OrderDesc})
		cancel()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.mergeLoadedLocked(partnerID, msgs)
		s.commit()
	}

	s.mu.Lock()
	idx := s.partnerIndexLocked(partnerID)
	if idx < 0 || s.partners[idx].UnreadCount == 0 {
		s.mu.Unlock()
		return nil
	}
	// optimistic: partner row first, total only after the server agrees
	prev := s.partners[idx].UnreadCount
	s.partners[idx].UnreadCount = 0
	s.commit()

	rctx, cancel := s.requestCtx(ctx)
	_, err := s.api.MarkMessagesAsRead(rctx, partnerID)
	cancel()

	s.mu.Lock()
	if err != nil {
		if i := s.partnerIndexLocked(partnerID); i >= 0 {
			s.partners[i].UnreadCount += prev
		}
		s.recomputeUnreadLocked()
		s.commit()
		return err
	}
	s.markReadLocked(partnerID)
	s.recomputeUnreadLocked()
	s.commit()
	return nil
}

// SendMessage optimistic send: the provisional entry shows up before the request is made.
// A timeout leaves it failed, any other error removes it and is reported to OnError.
func (s *ClientChatState) SendMessage(ctx context.Context, recipientID, body string) (*LocalMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "SendMessage", "message body is empty", nil)
	}
	if recipientID == "" || recipientID == s.userID {
		return nil, domain.NewError(domain.KindInvalidArgument, "SendMessage", "invalid recipient", nil)
	}

	clientID := s.appendPending(recipientID, body)
	return s.deliver(ctx, recipientID, clientID, body)
}

// SendMessageAsync SendMessage on its own goroutine, returns the provisional id at once
func (s *ClientChatState) SendMessageAsync(ctx context.Context, recipientID, body string) (string, <-chan error) {
	done := make(chan error, 1)
	if strings.TrimSpace(body) == "" || recipientID == "" || recipientID == s.userID {
		_, err := s.SendMessage(ctx, recipientID, body)
		done <- err
		return "", done
	}

	clientID := s.appendPending(recipientID, body)
	go func() {
		_, err := s.deliver(ctx, recipientID, clientID, body)
		done <- err
	}()
	return clientID, done
}

// appendPending add the provisional entry, return its client id
func (s *ClientChatState) appendPending(recipientID, body string) string {
	clientID := uuid.NewString()
	s.mu.Lock()
	s.messages[recipientID] = append(s.messages[recipientID], LocalMessage{
		Message: domain.Message{
			SenderID:    s.userID,
			RecipientID: recipientID,
			Body:        body,
			CreatedAt:   s.now(),
		},
		ClientID: clientID,
		Status:   StatusPending,
	})
	s.commit()
	return clientID
}

// Retry resend a failed entry
func (s *ClientChatState) Retry(ctx context.Context, clientID string) (*LocalMessage, error) {
	s.mu.Lock()
	partnerID, i := s.findClientLocked(clientID)
	if i < 0 {
		s.mu.Unlock()
		return nil, ErrUnknownMessage
	}
	entry := &s.messages[partnerID][i]
	if entry.Status != StatusFailed {
		s.mu.Unlock()
		return nil, ErrNotFailed
	}
	entry.Status = StatusPending
	body := entry.Body
	s.commit()

	return s.deliver(ctx, partnerID, clientID, body)
}

// Discard drop a failed entry
func (s *ClientChatState) Discard(clientID string) error {
	s.mu.Lock()
	partnerID, i := s.findClientLocked(clientID)
	if i < 0 {
		s.mu.Unlock()
		return ErrUnknownMessage
	}
	if s.messages[partnerID][i].Status != StatusFailed {
		s.mu.Unlock()
		return ErrNotFailed
	}
	s.removeLocked(partnerID, i)
	s.commit()
	return nil
}

func (s *ClientChatState) deliver(ctx context.Context, recipientID, clientID, body string) (*LocalMessage, error) {
	rctx, cancel := s.requestCtx(ctx)
	msg, err := s.api.SendMessage(rctx, recipientID, body)
	cancel()

	s.mu.Lock()
	if err != nil {
		_, i := s.findClientLocked(clientID)
		if errors.Is(err, context.DeadlineExceeded) {
			if i >= 0 {
				s.messages[recipientID][i].Status = StatusFailed
			}
			s.commit()
			return nil, err
		}
		if i >= 0 {
			s.removeLocked(recipientID, i)
		}
		onError := s.onError
		s.commit()
		if onError != nil {
			onError(err)
		}
		return nil, err
	}

	out := s.confirmLocked(clientID, *msg)
	s.touchPartnerLocked(*msg)
	s.commit()
	return out, nil
}

// confirmLocked swap the provisional entry for the server copy
func (s *ClientChatState) confirmLocked(clientID string, msg domain.Message) *LocalMessage {
	partnerID := msg.PartnerOf(s.userID)
	list := s.messages[partnerID]

	prov, real := -1, -1
	for i := range list {
		switch {
		case list[i].ClientID == clientID:
			prov = i
		case list[i].ID == msg.ID:
			real = i
		}
	}

	owned := true
	if prov >= 0 && list[prov].ID != "" && list[prov].ID != msg.ID {
		// an echo with the same body already adopted this entry for another message
		prov, owned = -1, false
	}

	switch {
	case prov >= 0 && real >= 0:
		s.removeLocked(partnerID, prov)
		out := s.messages[partnerID][indexOf(s.messages[partnerID], msg.ID)]
		return &out
	case prov >= 0:
		list[prov].Message = msg
		list[prov].Status = StatusConfirmed
		out := list[prov]
		return &out
	case real >= 0:
		out := list[real]
		return &out
	}
	entry := LocalMessage{Message: msg, Status: StatusConfirmed}
	if owned {
		entry.ClientID = clientID
	}
	list = append(list, entry)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	s.messages[partnerID] = list
	return &entry
}

// OnIncomingMessage a pushed message, duplicates are ignored
func (s *ClientChatState) OnIncomingMessage(msg domain.Message) {
	if msg.SenderID != s.userID && msg.RecipientID != s.userID {
		return
	}
	partnerID := msg.PartnerOf(s.userID)

	s.mu.Lock()
	list := s.messages[partnerID]
	if indexOf(list, msg.ID) >= 0 {
		s.mu.Unlock()
		return
	}

	if msg.SenderID == s.userID {
		// echo of our own send, adopt the matching pending entry
		if i := s.matchPendingLocked(partnerID, msg); i >= 0 {
			list[i].Message = msg
			list[i].Status = StatusConfirmed
			s.touchPartnerLocked(msg)
			s.commit()
			return
		}
	}

	s.messages[partnerID] = append(list, LocalMessage{Message: msg, Status: StatusConfirmed})
	sort.SliceStable(s.messages[partnerID], func(i, j int) bool {
		return s.messages[partnerID][i].CreatedAt.Before(s.messages[partnerID][j].CreatedAt)
	})
	s.touchPartnerLocked(msg)
	if msg.SenderID != s.userID && partnerID != s.active {
		s.partners[s.partnerIndexLocked(partnerID)].UnreadCount++
		s.totalUnread++
	}
	s.commit()
}

// Observer adapt the state to the transport's observer fan-out
func (s *ClientChatState) Observer() transport.Observer {
	return transport.ObserverFunc(s.HandleFrame)
}

// HandleFrame decode one server frame
func (s *ClientChatState) HandleFrame(data []byte) {
	frame, err := domain.DecodeFrame(data)
	if err != nil {
		logger.Log.Warn("client: bad frame", zap.Error(err))
		return
	}
	switch frame.Type {
	case domain.FrameMessageCreated:
		var msg domain.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			logger.Log.Warn("client: bad message frame", zap.Error(err))
			return
		}
		s.OnIncomingMessage(msg)
	case domain.FrameError:
		logger.Log.Warn("client: server error frame", zap.ByteString("data", frame.Data))
	default:
		logger.Log.Debug("client: frame ignored", zap.String("type", string(frame.Type)))
	}
}

func (s *ClientChatState) matchPendingLocked(partnerID string, msg domain.Message) int {
	for i, m := range s.messages[partnerID] {
		if m.Status != StatusPending || m.ID != "" || m.Body != msg.Body {
			continue
		}
		if d := msg.CreatedAt.Sub(m.CreatedAt); d < -reconcileWindow || d > reconcileWindow {
			continue
		}
		return i
	}
	return -1
}

// touchPartnerLocked move msg into the partner list as the latest message
func (s *ClientChatState) touchPartnerLocked(msg domain.Message) {
	partnerID := msg.PartnerOf(s.userID)
	i := s.partnerIndexLocked(partnerID)
	if i < 0 {
		s.partners = append(s.partners, domain.ConversationPartnerSummary{
			PartnerID: partnerID,
			Partner:   domain.UserSummary{UserID: partnerID, DisplayName: partnerID},
		})
		i = len(s.partners) - 1
	}
	p := &s.partners[i]
	if msg.CreatedAt.Before(p.LastMessageTime) {
		return
	}
	p.LastMessageTime = msg.CreatedAt
	p.LastMessageSnippet = domain.Snippet(msg.Body)
	p.LastMessageSenderID = msg.SenderID
	p.LastMessageIsRead = msg.IsRead
	s.sortPartnersLocked()
}

func (s *ClientChatState) mergeLoadedLocked(partnerID string, msgs []domain.Message) {
	merged := make([]LocalMessage, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		merged = append(merged, LocalMessage{Message: m, Status: StatusConfirmed})
		seen[m.ID] = true
	}
	// keep local-only entries: pending / failed sends and pushes newer than the page
	for _, m := range s.messages[partnerID] {
		if m.ID == "" || !seen[m.ID] {
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CreatedAt.Before(merged[j].CreatedAt) })
	s.messages[partnerID] = merged
	s.loaded[partnerID] = true
}

func (s *ClientChatState) markReadLocked(partnerID string) {
	for i := range s.messages[partnerID] {
		if s.messages[partnerID][i].SenderID == partnerID {
			s.messages[partnerID][i].IsRead = true
		}
	}
	if i := s.partnerIndexLocked(partnerID); i >= 0 && s.partners[i].LastMessageSenderID == partnerID {
		s.partners[i].LastMessageIsRead = true
	}
}

func (s *ClientChatState) recomputeUnreadLocked() {
	total := 0
	for _, p := range s.partners {
		total += p.UnreadCount
	}
	s.totalUnread = total
}

func (s *ClientChatState) sortPartnersLocked() {
	sort.SliceStable(s.partners, func(i, j int) bool {
		a, b := s.partners[i], s.partners[j]
		if !a.LastMessageTime.Equal(b.LastMessageTime) {
			return a.LastMessageTime.After(b.LastMessageTime)
		}
		return a.PartnerID < b.PartnerID
	})
}

func (s *ClientChatState) partnerIndexLocked(partnerID string) int {
	for i := range s.partners {
		if s.partners[i].PartnerID == partnerID {
			return i
		}
	}
	return -1
}

func (s *ClientChatState) findClientLocked(clientID string) (string, int) {
	for partnerID, list := range s.messages {
		for i := range list {
			if list[i].ClientID == clientID {
				return partnerID, i
			}
		}
	}
	return "", -1
}

func (s *ClientChatState) removeLocked(partnerID string, i int) {
	list := s.messages[partnerID]
	s.messages[partnerID] = append(list[:i:i], list[i+1:]...)
}

func indexOf(list []LocalMessage, id string) int {
	if id == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// String one line summary, used by the terminal client
func (m LocalMessage) String() string {
	mark := ""
	switch m.Status {
	case StatusPending:
		mark = " (sending)"
	case StatusFailed:
		mark = " (failed, /retry " + m.ClientID + ")"
	}
	return fmt.Sprintf("[%s] %s: %s%s", m.CreatedAt.Format("15:04:05"), m.SenderID, m.Body, mark)
}
