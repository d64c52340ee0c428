package domain

const (
	// EventMessageCreated emitted after a message is persisted
	EventMessageCreated = "chat.message.created"
	// EventMessagesRead reserved, emitted after a read receipt update
	EventMessagesRead = "chat.messages.read"
)

// Event definition anything published by the chat service
type Event interface {
	EventName() string
	// TargetUserID the user whose connections should see the event
	TargetUserID() string
}

// MessageCreated payload of EventMessageCreated
type MessageCreated struct {
	RecipientID string  `json:"recipient_id"`
	Message     Message `json:"message"`

	// OriginConnectionID sender connection that issued the send, skipped by the echo
	OriginConnectionID string `json:"origin_connection_id,omitempty"`
}

// EventName implement Event
func (MessageCreated) EventName() string { return EventMessageCreated }

// TargetUserID implement Event
func (e MessageCreated) TargetUserID() string { return e.RecipientID }

// MessagesRead payload of EventMessagesRead
type MessagesRead struct {
	ReaderID   string   `json:"reader_id"`
	PartnerID  string   `json:"partner_id"`
	MessageIDs []string `json:"message_ids"`
	Count      int      `json:"count"`
}

// EventName implement Event
func (MessagesRead) EventName() string { return EventMessagesRead }

// TargetUserID the original sender of the messages
func (e MessagesRead) TargetUserID() string { return e.PartnerID }
