package domain

import (
	"encoding/json"
	"fmt"
)

const (
	// PingFrame keepalive literal, never JSON decoded
	PingFrame = "ping"
	// PongFrame keepalive reply literal
	PongFrame = "pong"
)

// FrameType discriminator of Frame
type FrameType string

const (
	// FrameMessageCreated server push of a new message
	FrameMessageCreated FrameType = "message.created"
	// FrameMessagesRead server push of a read receipt (reserved)
	FrameMessagesRead FrameType = "messages.read"
	// FrameAction client request carried over the socket
	FrameAction FrameType = "action"
	// FrameResponse reply to a FrameAction
	FrameResponse FrameType = "response"
	// FrameError unsolicited error, e.g. an undecodable frame
	FrameError FrameType = "error"
)

// Frame definition websocket wire payload {type, data}
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshal data into a Frame
func NewFrame(t FrameType, data interface{}) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s frame: %w", t, err)
	}
	return Frame{Type: t, Data: raw}, nil
}

// Encode frame to wire bytes
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parse wire bytes. Keepalive literals must be filtered before calling.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}

// IsKeepalive check literal ping/pong
func IsKeepalive(b []byte) bool {
	s := string(b)
	return s == PingFrame || s == PongFrame
}

// Action websocket request action
type Action string

const (
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// ReadMessage websocket action read_message
	ReadMessage Action = "read_message"
	// GetPartners websocket action get_partners
	GetPartners Action = "get_partners"
	// GetMessages websocket action get_messages
	GetMessages Action = "get_messages"
	// DeleteMessages websocket action delete_messages
	DeleteMessages Action = "delete_messages"
)

// WSRequest websocket Request, data of a FrameAction
type WSRequest struct {
	Action      string    `json:"action"`
	RequestID   string    `json:"request_id"`
	RecipientID string    `json:"recipient_id,omitempty"`
	PartnerID   string    `json:"partner_id,omitempty"`
	Body        string    `json:"body,omitempty"`
	MessageIDs  []string  `json:"message_ids,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
	Order       SortOrder `json:"order,omitempty"`
}

// WSResponse websocket Response, data of a FrameResponse or FrameError
type WSResponse struct {
	Action    string      `json:"action"`
	RequestID string      `json:"request_id,omitempty"`
	Success   bool        `json:"success"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind ErrorKind   `json:"error_kind,omitempty"`
}
