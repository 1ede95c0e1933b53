package application

import (
	"context"

	"github.com/Rdemo143/RenTO/internal/domain"
)

// ListConversations returns the user's conversations most recently active
// first, each with its last message and the caller's unread count.
func (s *Service) ListConversations(
	ctx context.Context,
	userID string,
) ([]*domain.ConversationView, error) {
	convs, err := s.repo.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []*domain.ConversationView{}, nil
	}

	userIDs := make([]string, 0, len(convs)*2)
	lastIDs := make([]string, 0, len(convs))
	propertyIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		userIDs = append(userIDs, c.Participants[0], c.Participants[1])
		propertyIDs = append(propertyIDs, c.PropertyID)
		if c.LastMessageID != "" {
			lastIDs = append(lastIDs, c.LastMessageID)
		}
	}

	users, err := s.users.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	lastMessages, err := s.repo.GetMessagesByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Message, len(lastMessages))
	for _, m := range lastMessages {
		byID[m.ID] = m
	}

	unread, err := s.repo.CountUnreadByConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	properties := s.propertySummaries(ctx, propertyIDs)

	views := make([]*domain.ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, s.conversationView(c, users, properties[c.PropertyID], byID[c.LastMessageID], unread[c.ID]))
	}
	return views, nil
}

// ListMessages returns the conversation log oldest first. Only participants
// may read it; messages the caller deleted for themselves are omitted.
func (s *Service) ListMessages(
	ctx context.Context,
	userID, conversationID string,
) ([]*domain.MessageView, error) {
	if conversationID == "" {
		return nil, domain.ErrMissingConversation
	}
	conv, err := s.repo.GetConversation(ctx, nil, conversationID)
	if err != nil {
		return nil, err
	}
	if err := conv.CanSend(userID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetUsers(ctx, conv.Participants[:])
	if err != nil {
		return nil, err
	}

	views := make([]*domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		if m.DeletedForUser(userID) {
			continue
		}
		views = append(views, domain.NewMessageView(m, userSummary(users, m.SenderID)))
	}
	return views, nil
}

// CheckParticipant reports ErrNotFound or ErrForbidden when the user may not
// observe the conversation.
func (s *Service) CheckParticipant(ctx context.Context, userID, conversationID string) error {
	if conversationID == "" {
		return domain.ErrMissingConversation
	}
	conv, err := s.repo.GetConversation(ctx, nil, conversationID)
	if err != nil {
		return err
	}
	return conv.CanSend(userID)
}
