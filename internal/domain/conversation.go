package domain

import (
	"fmt"
	"time"
)

// Conversation Invariants:
// 1. Membership: exactly 2 participants, stored in canonical (sorted) order.
// 2. Uniqueness: at most one conversation per (pair, property) via LookupKey.
// 3. LastMessageID is a weak pointer, overwritten on every send.
type Conversation struct {
	ID            string    `json:"id"`
	Participants  [2]string `json:"participants"`
	PropertyID    string    `json:"propertyId,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CanonicalPair orders two user ids lexicographically.
func CanonicalPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// LookupKey is the normalized uniqueness key for a pair and an optional property.
// Each part is length-prefixed so ids containing the separator cannot collide.
// An absent property encodes as length 0.
func LookupKey(a, b, propertyID string) string {
	pair := CanonicalPair(a, b)
	return fmt.Sprintf("pair:%d:%s:%d:%s:%d:%s",
		len(pair[0]), pair[0],
		len(pair[1]), pair[1],
		len(propertyID), propertyID,
	)
}

func NewConversation(id, a, b, propertyID string, now time.Time) (*Conversation, error) {
	if a == "" || b == "" {
		return nil, ErrMissingRecipient
	}
	if a == b {
		return nil, ErrSelfConversation
	}
	return &Conversation{
		ID:           id,
		Participants: CanonicalPair(a, b),
		PropertyID:   propertyID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Conversation) LookupKey() string {
	return LookupKey(c.Participants[0], c.Participants[1], c.PropertyID)
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// IsBetween reports whether the conversation belongs exactly to the pair a, b.
func (c *Conversation) IsBetween(a, b string) bool {
	return c.Participants == CanonicalPair(a, b)
}

func (c *Conversation) CanSend(userID string) error {
	if !c.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

// Recipients returns every participant except the given user.
func (c *Conversation) Recipients(senderID string) []string {
	out := make([]string, 0, 1)
	for _, p := range c.Participants {
		if p != senderID {
			out = append(out, p)
		}
	}
	return out
}
