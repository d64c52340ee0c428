package domain

import "time"

// Message definition one direct message between two users
type Message struct {
	ID               string    `bson:"_id" json:"message_id"`
	SenderID         string    `bson:"sender_id" json:"sender_id"`
	RecipientID      string    `bson:"recipient_id" json:"recipient_id"`
	Body             string    `bson:"body" json:"body"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	IsRead           bool      `bson:"is_read" json:"is_read"`
	SenderDeleted    bool      `bson:"sender_deleted" json:"-"`
	RecipientDeleted bool      `bson:"recipient_deleted" json:"-"`
}

// VisibleTo reports whether userID can still see the message.
// Only the caller's own deletion flag matters.
func (m *Message) VisibleTo(userID string) bool {
	switch userID {
	case m.SenderID:
		return !m.SenderDeleted
	case m.RecipientID:
		return !m.RecipientDeleted
	}
	return false
}

// PartnerOf return the other party of the message from userID's point of view
func (m *Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Involves check the message is between a and b (either direction)
func (m *Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

// ConversationPartnerSummary definition one row of the conversation list
type ConversationPartnerSummary struct {
	PartnerID           string      `json:"partner_id"`
	Partner             UserSummary `json:"partner"`
	UnreadCount         int         `json:"unread_count"`
	LastMessageTime     time.Time   `json:"last_message_time"`
	LastMessageSnippet  string      `json:"last_message_snippet"`
	LastMessageSenderID string      `json:"last_message_sender_id"`
	LastMessageIsRead   bool        `json:"last_message_is_read"`
}

// SortOrder list order
type SortOrder string

const (
	// OrderAsc oldest first
	OrderAsc SortOrder = "asc"
	// OrderDesc newest first
	OrderDesc SortOrder = "desc"
)

const (
	// DefaultListLimit used when ListOptions.Limit is zero
	DefaultListLimit = 50
	// MaxListLimit upper bound of one page
	MaxListLimit = 200
	// SnippetLength max runes kept in LastMessageSnippet
	SnippetLength = 80
)

// ListOptions paging options shared by the list operations
type ListOptions struct {
	Limit  int       `json:"limit" query:"limit"`
	Offset int       `json:"offset" query:"offset"`
	Order  SortOrder `json:"order" query:"order"`
}

// Normalize fill defaults and clamp values. defaultOrder is used when Order is empty.
func (o ListOptions) Normalize(defaultOrder SortOrder) ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Order != OrderAsc && o.Order != OrderDesc {
		o.Order = defaultOrder
	}
	return o
}

// Snippet cut body to SnippetLength runes
func Snippet(body string) string {
	r := []rune(body)
	if len(r) <= SnippetLength {
		return body
	}
	return string(r[:SnippetLength]) + "…"
}
