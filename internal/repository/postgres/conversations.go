package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

const conversationColumns = `id, participant_a, participant_b, property_id, last_message_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var propertyID, lastMessageID sql.NullString
	if err := row.Scan(
		&c.ID,
		&c.Participants[0],
		&c.Participants[1],
		&propertyID,
		&lastMessageID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.PropertyID = propertyID.String
	c.LastMessageID = lastMessageID.String
	return &c, nil
}

// GetConversation reads through the cache when called outside a transaction.
// Cached entries only carry the immutable fields.
func (r *Repository) GetConversation(
	ctx context.Context,
	tx *sql.Tx,
	id string,
) (*domain.Conversation, error) {
	if tx == nil && r.Cache != nil {
		conv, err := r.Cache.GetConversation(ctx, id)
		if err == nil && conv != nil {
			return conv, nil
		}
	}

	conv, err := r.fetchConversation(ctx, tx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	if r.Cache != nil {
		if err := r.Cache.SetConversation(ctx, conv); err != nil {
			observability.GetLogger(ctx).Debug("conversation cache set failed", zap.Error(err))
		}
	}
	return conv, nil
}

func (r *Repository) GetConversationByLookupKey(
	ctx context.Context,
	tx *sql.Tx,
	key string,
) (*domain.Conversation, error) {
	return r.fetchConversation(ctx, tx, `WHERE lookup_key = $1`, key)
}

func (r *Repository) fetchConversation(
	ctx context.Context,
	tx *sql.Tx,
	where string,
	arg string,
) (*domain.Conversation, error) {
	q := r.getter(tx)
	conv, err := scanConversation(q.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (r *Repository) InsertConversation(
	ctx context.Context,
	tx *sql.Tx,
	conv *domain.Conversation,
) (bool, error) {
	q := r.getter(tx)
	res, err := q.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, property_id, lookup_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (lookup_key) DO NOTHING
	`,
		conv.ID,
		conv.Participants[0],
		conv.Participants[1],
		nullString(conv.PropertyID),
		conv.LookupKey(),
		conv.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repository) TouchConversation(
	ctx context.Context,
	tx *sql.Tx,
	convID, lastMessageID string,
	at time.Time,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_id = $2, updated_at = $3
		WHERE id = $1
	`, convID, lastMessageID, at)
	return err
}

func (r *Repository) ListConversationsByUser(
	ctx context.Context,
	userID string,
) ([]*domain.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}
