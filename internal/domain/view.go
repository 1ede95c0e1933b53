package domain

import "time"

// MessageView is a message with its sender resolved for display.
type MessageView struct {
	ID              string       `json:"id"`
	ConversationID  string       `json:"conversationId"`
	Sender          UserSummary  `json:"sender"`
	ClientMessageID string       `json:"clientMessageId,omitempty"`
	Content         string       `json:"content"`
	Attachments     []Attachment `json:"attachments"`
	PropertyID      string       `json:"propertyId,omitempty"`
	IsPropertyChat  bool         `json:"isPropertyChat"`
	IsRead          bool         `json:"isRead"`
	ReadAt          *time.Time   `json:"readAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// ConversationView is a conversation with participants, property and last
// message expanded.
type ConversationView struct {
	ID           string           `json:"id"`
	Participants []UserSummary    `json:"participants"`
	Property     *PropertySummary `json:"property,omitempty"`
	LastMessage  *MessageView     `json:"lastMessage,omitempty"`
	UnreadCount  int              `json:"unreadCount"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func NewMessageView(m *Message, sender UserSummary) *MessageView {
	atts := m.Attachments
	if atts == nil {
		atts = []Attachment{}
	}
	return &MessageView{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Sender:          sender,
		ClientMessageID: m.ClientMessageID,
		Content:         m.Content,
		Attachments:     atts,
		PropertyID:      m.PropertyID,
		IsPropertyChat:  m.IsPropertyChat(),
		IsRead:          m.IsRead,
		ReadAt:          m.ReadAt,
		CreatedAt:       m.CreatedAt,
	}
}
