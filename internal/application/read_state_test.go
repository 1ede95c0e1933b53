package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkRead_IdempotentAndRecipientOnly(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)
	conv := openConversation(t, s, "")

	m, err := s.SendMessage(ctx, SendMessageCommand{SenderID: "tenant", ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)

	n, err := s.MarkRead(ctx, "tenant", []string{m.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "the sender cannot mark their own message read")

	n, err = s.MarkRead(ctx, "other", []string{m.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "outsiders are filtered silently")

	n, err = s.MarkRead(ctx, "owner", []string{m.ID, m.ID, "", "unknown"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	first := *repo.messages[m.ID].ReadAt

	n, err = s.MarkRead(ctx, "owner", []string{m.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, first, *repo.messages[m.ID].ReadAt)

	n, err = s.MarkRead(ctx, "owner", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnreadCount_ExcludesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemRepo(), nil)
	conv := openConversation(t, s, "")

	var ids []string
	for _, body := range []string{"one", "two", "three"} {
		m, err := s.SendMessage(ctx, SendMessageCommand{SenderID: "tenant", ConversationID: conv.ID, Content: body})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	n, err := s.UnreadCount(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	deleted, err := s.SoftDelete(ctx, "owner", ids[:1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	n, err = s.UnreadCount(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The sender's view is untouched by the recipient's deletion.
	msgs, err := s.ListMessages(ctx, "tenant", conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	msgs, err = s.ListMessages(ctx, "owner", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
}

func TestSoftDelete_OutsiderIgnored(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)
	conv := openConversation(t, s, "")

	m, err := s.SendMessage(ctx, SendMessageCommand{SenderID: "tenant", ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)

	n, err := s.SoftDelete(ctx, "other", []string{m.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.messages[m.ID].DeletedFor)

	n, err = s.SoftDelete(ctx, "tenant", []string{m.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.SoftDelete(ctx, "tenant", []string{m.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, repo.messages[m.ID].IsRead)
}
