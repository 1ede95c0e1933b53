package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rdemo143/RenTO/internal/domain"
)

func TestGetOrCreateConversation_CanonicalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)

	c1, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner"})
	require.NoError(t, err)

	c2, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "owner", RecipientID: "tenant"})
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID, "either side must resolve the same conversation")
	assert.Len(t, repo.convs, 1)

	stored := repo.convs[c1.ID]
	assert.Equal(t, [2]string{"owner", "tenant"}, stored.Participants)
	assert.Nil(t, c1.Property)
	require.Len(t, c1.Participants, 2)
	assert.Equal(t, "Oscar Owner", c1.Participants[0].Name)
}

func TestGetOrCreateConversation_PropertyScopeIsDistinct(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)

	general, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner"})
	require.NoError(t, err)

	scoped, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner", PropertyID: "p1"})
	require.NoError(t, err)

	again, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "owner", RecipientID: "tenant", PropertyID: "p1"})
	require.NoError(t, err)

	assert.NotEqual(t, general.ID, scoped.ID)
	assert.Equal(t, scoped.ID, again.ID)
	require.NotNil(t, scoped.Property)
	assert.Equal(t, "Flat p1", scoped.Property.Title)
}

func TestGetOrCreateConversation_PropertyFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemRepo(), nil)
	s.catalog = fakeCatalog{err: errors.New("catalog down")}

	c, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner", PropertyID: "p9"})
	require.NoError(t, err)
	require.NotNil(t, c.Property)
	assert.Equal(t, domain.PropertySummary{ID: "p9"}, *c.Property)
}

func TestGetOrCreateConversation_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  GetOrCreateConversationCommand
		want error
	}{
		{"missing recipient", GetOrCreateConversationCommand{SenderID: "tenant"}, domain.ErrInvalidRequest},
		{"blank recipient", GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "  "}, domain.ErrInvalidRequest},
		{"self", GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "tenant"}, domain.ErrSelfConversation},
		{"unknown recipient", GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "ghost"}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			s := newTestService(repo, nil)
			_, err := s.GetOrCreateConversation(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.convs)
		})
	}
}

func TestGetOrCreateConversation_ConcurrentCallersConverge(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner"}
			if i%2 == 1 {
				cmd = GetOrCreateConversationCommand{SenderID: "owner", RecipientID: "tenant"}
			}
			c, err := s.GetOrCreateConversation(ctx, cmd)
			if err == nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, repo.convs, 1)
}

func TestGetOrCreateConversation_ColonIDsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)
	s.users = fakeDirectory{
		"a:b": {ID: "a:b"},
		"c":   {ID: "c"},
		"a":   {ID: "a"},
		"b:c": {ID: "b:c"},
	}

	first, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "a:b", RecipientID: "c"})
	require.NoError(t, err)
	second, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "a", RecipientID: "b:c"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.convs, 2)
	assert.Equal(t, [2]string{"a:b", "c"}, repo.convs[first.ID].Participants)
	assert.Equal(t, [2]string{"a", "b:c"}, repo.convs[second.ID].Participants)
}

func TestGetOrCreateConversation_RejectsForeignRowForKey(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := newTestService(repo, nil)

	// A row stored under the tenant/owner key that belongs to someone else.
	repo.convs["stray"] = &domain.Conversation{ID: "stray", Participants: [2]string{"other", "tenant"}}
	repo.byKey[domain.LookupKey("tenant", "owner", "")] = "stray"

	_, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidRequest)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestListConversations_ResolvesEachPropertyOnceConcurrently(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemRepo(), nil)

	for _, cmd := range []GetOrCreateConversationCommand{
		{SenderID: "tenant", RecipientID: "owner", PropertyID: "p1"},
		{SenderID: "tenant", RecipientID: "owner", PropertyID: "p2"},
		{SenderID: "other", RecipientID: "owner", PropertyID: "p1"},
		{SenderID: "other", RecipientID: "owner"},
	} {
		_, err := s.GetOrCreateConversation(ctx, cmd)
		require.NoError(t, err)
	}

	catalog := newCountingCatalog(2)
	s.catalog = catalog

	inbox, err := s.ListConversations(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, inbox, 4)

	assert.Equal(t, 1, catalog.callsFor("p1"))
	assert.Equal(t, 1, catalog.callsFor("p2"))
	assert.Zero(t, catalog.callsFor(""))
	assert.True(t, catalog.sawOverlap(), "distinct properties should be fetched in parallel")

	titles := map[string]int{}
	for _, c := range inbox {
		if c.Property == nil {
			continue
		}
		titles[c.Property.Title]++
	}
	assert.Equal(t, map[string]int{"Flat p1": 2, "Flat p2": 1}, titles)
}

func TestCheckParticipant(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemRepo(), nil)

	c, err := s.GetOrCreateConversation(ctx, GetOrCreateConversationCommand{SenderID: "tenant", RecipientID: "owner"})
	require.NoError(t, err)

	assert.NoError(t, s.CheckParticipant(ctx, "owner", c.ID))
	assert.ErrorIs(t, s.CheckParticipant(ctx, "other", c.ID), domain.ErrForbidden)
	assert.ErrorIs(t, s.CheckParticipant(ctx, "owner", "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, s.CheckParticipant(ctx, "owner", ""), domain.ErrInvalidRequest)
}
