package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxMessageSize    = 5000
	MaxAttachments    = 10
	MaxDisplayNameLen = 255
)

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentOther    AttachmentKind = "other"
)

// NormalizeKind maps unknown kinds to other.
func NormalizeKind(k string) AttachmentKind {
	switch AttachmentKind(strings.ToLower(strings.TrimSpace(k))) {
	case AttachmentImage:
		return AttachmentImage
	case AttachmentDocument:
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}

// KindForContentType classifies an uploaded file by its MIME type.
func KindForContentType(contentType string) AttachmentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return AttachmentImage
	case ct == "application/pdf",
		strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "msword"),
		strings.Contains(ct, "officedocument"),
		strings.Contains(ct, "opendocument"):
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}

type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	URL         string         `json:"url"`
	StorageID   string         `json:"storageId,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
}

// Message Invariants:
// 1. Ownership: belongs to exactly one conversation for its lifetime.
// 2. Immutability: only IsRead/ReadAt and DeletedFor change after creation.
// 3. Never physically deleted.
type Message struct {
	ID              string       `json:"id"`
	ConversationID  string       `json:"conversationId"`
	SenderID        string       `json:"senderId"`
	ClientMessageID string       `json:"clientMessageId,omitempty"`
	Content         string       `json:"content"`
	Attachments     []Attachment `json:"attachments"`
	PropertyID      string       `json:"propertyId,omitempty"`
	IsRead          bool         `json:"isRead"`
	ReadAt          *time.Time   `json:"readAt,omitempty"`
	DeletedFor      []string     `json:"deletedFor,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

func NewMessage(
	id string,
	conv *Conversation,
	senderID string,
	content string,
	attachments []Attachment,
	clientMessageID string,
	now time.Time,
) (*Message, error) {
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if err := conv.CanSend(senderID); err != nil {
		return nil, err
	}

	content, atts, err := ValidateContent(content, attachments)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:              id,
		ConversationID:  conv.ID,
		SenderID:        senderID,
		ClientMessageID: strings.TrimSpace(clientMessageID),
		Content:         content,
		Attachments:     atts,
		PropertyID:      conv.PropertyID,
		CreatedAt:       now,
	}, nil
}

// ValidateContent trims the content and normalizes the attachments, rejecting
// bodies that could never be stored. It needs no conversation, so callers run
// it before any lookup.
func ValidateContent(content string, attachments []Attachment) (string, []Attachment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil, ErrEmptyContent
	}
	if len(content) > MaxMessageSize {
		return "", nil, ErrMessageTooLarge
	}
	atts, err := normalizeAttachments(attachments)
	if err != nil {
		return "", nil, err
	}
	return content, atts, nil
}

func normalizeAttachments(in []Attachment) ([]Attachment, error) {
	if len(in) > MaxAttachments {
		return nil, ErrTooManyAttachments
	}
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		url := strings.TrimSpace(a.URL)
		if url == "" {
			return nil, ErrInvalidAttachment
		}
		name := strings.TrimSpace(a.DisplayName)
		name = truncateRunes(name, MaxDisplayNameLen)
		out = append(out, Attachment{
			Kind:        NormalizeKind(string(a.Kind)),
			URL:         url,
			StorageID:   strings.TrimSpace(a.StorageID),
			DisplayName: name,
		})
	}
	return out, nil
}

// truncateRunes keeps at most max runes so multi-byte characters stay whole.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func (m *Message) IsPropertyChat() bool {
	return m.PropertyID != ""
}

func (m *Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// Preview is a short single-line form of the content used in notifications.
func (m *Message) Preview(max int) string {
	s := strings.Join(strings.Fields(m.Content), " ")
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
