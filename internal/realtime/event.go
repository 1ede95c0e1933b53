package realtime

import (
	"encoding/json"
	"time"
)

const EventError = "error"

// Event is both the cross-instance bus message and the server frame sent to
// clients.
type Event struct {
	Type           string          `json:"type"`
	Room           string          `json:"room"`
	ConversationID string          `json:"conversationId,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// ClientFrame is an inbound client command.
type ClientFrame struct {
	Type           string `json:"type"`
	PropertyID     string `json:"propertyId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
}

const (
	FrameJoinProperty      = "join_property_chat"
	FrameLeaveProperty     = "leave_property_chat"
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FramePropertyMessage   = "property_message"
)

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PropertyMessage is the payload of a property.message broadcast.
type PropertyMessage struct {
	PropertyID string    `json:"propertyId"`
	SenderID   string    `json:"senderId"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}

func errorFrame(code, message string) []byte {
	data, _ := json.Marshal(errorData{Code: code, Message: message})
	b, _ := json.Marshal(Event{Type: EventError, OccurredAt: time.Now().UTC(), Data: data})
	return b
}
