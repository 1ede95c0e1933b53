package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Rdemo143/RenTO/internal/domain"
)

type Repository interface {
	// Conversations
	GetConversation(ctx context.Context, tx *sql.Tx, id string) (*domain.Conversation, error)
	GetConversationByLookupKey(ctx context.Context, tx *sql.Tx, key string) (*domain.Conversation, error)
	// InsertConversation reports false when a conversation with the same
	// lookup key already exists.
	InsertConversation(ctx context.Context, tx *sql.Tx, conv *domain.Conversation) (bool, error)
	TouchConversation(ctx context.Context, tx *sql.Tx, convID, lastMessageID string, at time.Time) error
	ListConversationsByUser(ctx context.Context, userID string) ([]*domain.Conversation, error)

	// Messages
	// InsertMessage reports false when a message with the same
	// (conversation, sender, client message id) already exists.
	InsertMessage(ctx context.Context, tx *sql.Tx, msg *domain.Message) (bool, error)
	GetMessageByClientID(ctx context.Context, tx *sql.Tx, convID, senderID, clientID string) (*domain.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) ([]*domain.Message, error)
	ListMessages(ctx context.Context, convID, viewerID string) ([]*domain.Message, error)

	// Read state
	MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, userID string, ids []string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	CountUnreadByConversation(ctx context.Context, userID string) (map[string]int, error)

	// Outbox
	InsertOutbox(ctx context.Context, tx *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error
}
