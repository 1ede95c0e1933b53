package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Rdemo143/RenTO/internal/domain"
)

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.client_message_id, m.content,
	m.attachments, m.property_id, m.is_read, m.read_at, m.deleted_for, m.created_at`

// addressedTo restricts m (joined with c) to messages where $1 is the
// non-sender participant.
const addressedTo = `(c.participant_a = $1 OR c.participant_b = $1) AND m.sender_id <> $1`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var m domain.Message
	var clientID, propertyID sql.NullString
	var attachments []byte
	var readAt sql.NullTime
	var deletedFor pq.StringArray

	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&clientID,
		&m.Content,
		&attachments,
		&propertyID,
		&m.IsRead,
		&readAt,
		&deletedFor,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}

	m.ClientMessageID = clientID.String
	m.PropertyID = propertyID.String
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	m.DeletedFor = []string(deletedFor)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *Repository) InsertMessage(
	ctx context.Context,
	tx *sql.Tx,
	msg *domain.Message,
) (bool, error) {
	atts := msg.Attachments
	if atts == nil {
		atts = []domain.Attachment{}
	}
	attachments, err := json.Marshal(atts)
	if err != nil {
		return false, err
	}

	q := r.getter(tx)
	res, err := q.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, sender_id, client_message_id,
			content, attachments, property_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (conversation_id, sender_id, client_message_id)
			WHERE client_message_id IS NOT NULL
			DO NOTHING
	`,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		nullString(msg.ClientMessageID),
		msg.Content,
		attachments,
		nullString(msg.PropertyID),
		msg.CreatedAt,
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

func (r *Repository) GetMessageByClientID(
	ctx context.Context,
	tx *sql.Tx,
	convID, senderID, clientID string,
) (*domain.Message, error) {
	q := r.getter(tx)
	m, err := scanMessage(q.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id = $2 AND m.client_message_id = $3
	`, convID, senderID, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Repository) GetMessagesByIDs(
	ctx context.Context,
	ids []string,
) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ListMessages returns the conversation log oldest first, without the
// messages the viewer soft-deleted.
func (r *Repository) ListMessages(
	ctx context.Context,
	convID, viewerID string,
) ([]*domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = $1
		  AND NOT ($2 = ANY(m.deleted_for))
		ORDER BY m.created_at ASC, m.id ASC
	`, convID, viewerID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *Repository) MarkRead(
	ctx context.Context,
	userID string,
	ids []string,
	at time.Time,
) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE messages m
		SET is_read = true, read_at = $3
		FROM conversations c
		WHERE c.id = m.conversation_id
		  AND m.id = ANY($2)
		  AND m.is_read = false
		  AND `+addressedTo,
		userID, pq.Array(ids), at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) SoftDelete(
	ctx context.Context,
	userID string,
	ids []string,
) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE messages m
		SET deleted_for = array_append(m.deleted_for, $1)
		FROM conversations c
		WHERE c.id = m.conversation_id
		  AND m.id = ANY($2)
		  AND (c.participant_a = $1 OR c.participant_b = $1)
		  AND NOT ($1 = ANY(m.deleted_for))
	`, userID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE `+addressedTo+`
		  AND m.is_read = false
		  AND NOT ($1 = ANY(m.deleted_for))
	`, userID).Scan(&n)
	return n, err
}

func (r *Repository) CountUnreadByConversation(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT m.conversation_id, count(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE `+addressedTo+`
		  AND m.is_read = false
		  AND NOT ($1 = ANY(m.deleted_for))
		GROUP BY m.conversation_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *Repository) InsertOutbox(
	ctx context.Context,
	tx *sql.Tx,
	aggregateType, aggregateID, eventType string,
	payload []byte,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, aggregateType, aggregateID, eventType, payload)
	return err
}
