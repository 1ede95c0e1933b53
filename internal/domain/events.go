package domain

import "time"

// Realtime event types.
const (
	EventMessageCreated      = "message.created"
	EventConversationUpdated = "conversation.updated"
	EventPropertyMessage     = "property.message"
)

// Outbox event types.
const (
	AggregateConversation = "conversation"
	OutboxMessageCreated  = "message.created"
)

// ConversationUpdated is the lightweight event addressed to user rooms.
type ConversationUpdated struct {
	ConversationID string       `json:"conversationId"`
	LastMessage    *MessageView `json:"lastMessage"`
}

// MessageCreatedEvent is the outbox payload consumed by the push pipeline.
type MessageCreatedEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	RecipientIDs   []string  `json:"recipientIds"`
	Preview        string    `json:"preview"`
	PropertyID     string    `json:"propertyId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Legacy event names emitted alongside the current ones when enabled.
var LegacyEventNames = map[string]string{
	EventMessageCreated:      "new_message",
	EventConversationUpdated: "conversation_updated",
	EventPropertyMessage:     "new_property_message",
}

func UserRoom(userID string) string         { return "user:" + userID }
func ConversationRoom(convID string) string { return "conversation:" + convID }
func PropertyRoom(propertyID string) string { return "property:" + propertyID }
