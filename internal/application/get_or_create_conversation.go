package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

type GetOrCreateConversationCommand struct {
	SenderID    string
	RecipientID string
	PropertyID  string
}

// GetOrCreateConversation returns the single conversation for the pair and
// optional property, creating it on first use. Concurrent callers converge
// on one row through the lookup key's unique index.
func (s *Service) GetOrCreateConversation(
	ctx context.Context,
	cmd GetOrCreateConversationCommand,
) (*domain.ConversationView, error) {
	recipientID := strings.TrimSpace(cmd.RecipientID)
	propertyID := strings.TrimSpace(cmd.PropertyID)

	if recipientID == "" {
		return nil, domain.ErrMissingRecipient
	}
	if recipientID == cmd.SenderID {
		return nil, domain.ErrSelfConversation
	}

	users, err := s.users.GetUsers(ctx, []string{cmd.SenderID, recipientID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve participants: %w", err)
	}
	if _, ok := users[recipientID]; !ok {
		return nil, domain.ErrUserNotFound
	}

	key := domain.LookupKey(cmd.SenderID, recipientID, propertyID)

	// Best-effort lookup before paying for a transaction.
	conv, err := s.repo.GetConversationByLookupKey(ctx, nil, key)
	if err != nil && !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, err
	}

	if conv == nil {
		created := false
		txErr := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			created = false
			existing, err := s.repo.GetConversationByLookupKey(ctx, tx, key)
			if err == nil {
				conv = existing
				return nil
			}
			if !errors.Is(err, domain.ErrConversationNotFound) {
				return err
			}

			candidate, err := domain.NewConversation(uuid.NewString(), cmd.SenderID, recipientID, propertyID, s.now())
			if err != nil {
				return err
			}

			inserted, err := s.repo.InsertConversation(ctx, tx, candidate)
			if err != nil {
				return fmt.Errorf("failed to create conversation: %w", err)
			}
			if inserted {
				conv, created = candidate, true
				return nil
			}

			// Lost the race; the winner's row is visible now.
			conv, err = s.repo.GetConversationByLookupKey(ctx, tx, key)
			return err
		})
		if txErr != nil {
			return nil, txErr
		}

		if created {
			scope := "general"
			if propertyID != "" {
				scope = "property"
			}
			observability.ConversationsCreatedTotal.WithLabelValues(scope).Inc()
		}
	}

	if !conv.IsBetween(cmd.SenderID, recipientID) || conv.PropertyID != propertyID {
		s.log.Error("lookup key resolved to a foreign conversation",
			zap.String("conversation_id", conv.ID),
			zap.String("lookup_key", key),
		)
		return nil, fmt.Errorf("conversation %s does not match lookup key %q", conv.ID, key)
	}

	s.log.Debug("conversation resolved",
		zap.String("conversation_id", conv.ID),
		zap.String("lookup_key", key),
	)

	return s.conversationView(conv, users, s.propertySummary(ctx, conv.PropertyID), nil, 0), nil
}

func (s *Service) conversationView(
	conv *domain.Conversation,
	users map[string]*domain.UserSummary,
	property *domain.PropertySummary,
	last *domain.Message,
	unread int,
) *domain.ConversationView {
	view := &domain.ConversationView{
		ID:           conv.ID,
		Participants: []domain.UserSummary{userSummary(users, conv.Participants[0]), userSummary(users, conv.Participants[1])},
		Property:     property,
		UnreadCount:  unread,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
	if last != nil {
		view.LastMessage = domain.NewMessageView(last, userSummary(users, last.SenderID))
	}
	return view
}
