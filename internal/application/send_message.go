package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

const pushPreviewLen = 100

type SendMessageCommand struct {
	SenderID        string
	ConversationID  string
	Content         string
	Attachments     []domain.Attachment
	ClientMessageID string
}

func (s *Service) SendMessage(
	ctx context.Context,
	cmd SendMessageCommand,
) (*domain.MessageView, error) {
	convID := strings.TrimSpace(cmd.ConversationID)
	if convID == "" {
		return nil, domain.ErrMissingConversation
	}
	clientID := strings.TrimSpace(cmd.ClientMessageID)

	content, attachments, err := domain.ValidateContent(cmd.Content, cmd.Attachments)
	if err != nil {
		return nil, err
	}

	s.log.Info("SendMessage requested",
		zap.String("conversation_id", convID),
		zap.String("user_id", cmd.SenderID),
	)

	sender, err := s.users.GetUser(ctx, cmd.SenderID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to resolve sender: %w", err)
		}
		sender = &domain.UserSummary{ID: cmd.SenderID}
	}

	var (
		result    *domain.Message
		conv      *domain.Conversation
		duplicate bool
	)

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		duplicate = false

		c, err := s.repo.GetConversation(ctx, tx, convID)
		if err != nil {
			return err
		}
		if err := c.CanSend(cmd.SenderID); err != nil {
			return err
		}
		conv = c

		if clientID != "" {
			existing, err := s.repo.GetMessageByClientID(ctx, tx, convID, cmd.SenderID, clientID)
			if err != nil {
				return fmt.Errorf("failed to check idempotency: %w", err)
			}
			if existing != nil {
				result, duplicate = existing, true
				return nil
			}
		}

		msg, err := domain.NewMessage(
			uuid.NewString(),
			c,
			cmd.SenderID,
			content,
			attachments,
			clientID,
			s.now(),
		)
		if err != nil {
			return err
		}

		inserted, err := s.repo.InsertMessage(ctx, tx, msg)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		if !inserted {
			// A concurrent retry with the same client id committed first.
			existing, err := s.repo.GetMessageByClientID(ctx, tx, convID, cmd.SenderID, clientID)
			if err != nil {
				return fmt.Errorf("failed to load concurrent duplicate: %w", err)
			}
			if existing == nil {
				return fmt.Errorf("message insert conflicted but no row for client id %q", clientID)
			}
			result, duplicate = existing, true
			return nil
		}

		if err := s.repo.TouchConversation(ctx, tx, c.ID, msg.ID, msg.CreatedAt); err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}

		payload, err := json.Marshal(domain.MessageCreatedEvent{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			SenderName:     sender.Name,
			RecipientIDs:   c.Recipients(msg.SenderID),
			Preview:        msg.Preview(pushPreviewLen),
			PropertyID:     msg.PropertyID,
			CreatedAt:      msg.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}

		if err := s.repo.InsertOutbox(
			ctx, tx,
			domain.AggregateConversation,
			msg.ConversationID,
			domain.OutboxMessageCreated,
			payload,
		); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}

		result = msg
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := domain.NewMessageView(result, *sender)
	if duplicate {
		s.log.Info("duplicate send collapsed",
			zap.String("conversation_id", convID),
			zap.String("message_id", result.ID),
		)
		return view, nil
	}

	observability.MessagesSentTotal.Inc()

	s.publish(ctx, domain.ConversationRoom(conv.ID), domain.EventMessageCreated, conv.ID, view)
	for _, uid := range conv.Recipients(cmd.SenderID) {
		s.publish(ctx, domain.UserRoom(uid), domain.EventConversationUpdated, conv.ID, domain.ConversationUpdated{
			ConversationID: conv.ID,
			LastMessage:    view,
		})
	}

	return view, nil
}
