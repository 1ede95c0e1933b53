package application

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Rdemo143/RenTO/internal/domain"
)

// memRepo is an in-memory repository.Repository with the same filtering
// rules as the postgres queries.
type memRepo struct {
	mu       sync.Mutex
	convs    map[string]*domain.Conversation
	byKey    map[string]string
	messages map[string]*domain.Message
	order    []string
	outbox   []outboxRow

	failInsertMessage error
	// beforeInsertMessage runs ahead of each insert, outside the lock.
	beforeInsertMessage func(msg *domain.Message)
}

type outboxRow struct {
	aggregateType, aggregateID, eventType string
	payload                               []byte
}

func newMemRepo() *memRepo {
	return &memRepo{
		convs:    make(map[string]*domain.Conversation),
		byKey:    make(map[string]string),
		messages: make(map[string]*domain.Message),
	}
}

func (r *memRepo) GetConversation(_ context.Context, _ *sql.Tx, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetConversationByLookupKey(ctx context.Context, tx *sql.Tx, key string) (*domain.Conversation, error) {
	r.mu.Lock()
	id, ok := r.byKey[key]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return r.GetConversation(ctx, tx, id)
}

func (r *memRepo) InsertConversation(_ context.Context, _ *sql.Tx, conv *domain.Conversation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := conv.LookupKey()
	if _, exists := r.byKey[key]; exists {
		return false, nil
	}
	cp := *conv
	r.convs[conv.ID] = &cp
	r.byKey[key] = conv.ID
	return true, nil
}

func (r *memRepo) TouchConversation(_ context.Context, _ *sql.Tx, convID, lastMessageID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[convID]; ok {
		c.LastMessageID = lastMessageID
		c.UpdatedAt = at
	}
	return nil
}

func (r *memRepo) ListConversationsByUser(_ context.Context, userID string) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memRepo) InsertMessage(_ context.Context, _ *sql.Tx, msg *domain.Message) (bool, error) {
	if r.failInsertMessage != nil {
		return false, r.failInsertMessage
	}
	if r.beforeInsertMessage != nil {
		r.beforeInsertMessage(msg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ClientMessageID != "" {
		for _, m := range r.messages {
			if m.ConversationID == msg.ConversationID && m.SenderID == msg.SenderID && m.ClientMessageID == msg.ClientMessageID {
				return false, nil
			}
		}
	}
	cp := *msg
	r.messages[msg.ID] = &cp
	r.order = append(r.order, msg.ID)
	return true, nil
}

// storeMessage writes a message directly, as another request would.
func (r *memRepo) storeMessage(msg *domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	r.order = append(r.order, msg.ID)
}

func (r *memRepo) GetMessageByClientID(_ context.Context, _ *sql.Tx, convID, senderID, clientID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ConversationID == convID && m.SenderID == senderID && m.ClientMessageID == clientID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetMessagesByIDs(_ context.Context, ids []string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, id := range ids {
		if m, ok := r.messages[id]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) ListMessages(_ context.Context, convID, viewerID string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, id := range r.order {
		m := r.messages[id]
		if m.ConversationID == convID && !m.DeletedForUser(viewerID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// addressedTo mirrors the SQL predicate: the user is the non-sender participant.
func (r *memRepo) addressedTo(m *domain.Message, userID string) bool {
	c, ok := r.convs[m.ConversationID]
	return ok && c.HasParticipant(userID) && m.SenderID != userID
}

func (r *memRepo) MarkRead(_ context.Context, userID string, ids []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.messages[id]
		if !ok || m.IsRead || !r.addressedTo(m, userID) {
			continue
		}
		m.IsRead = true
		t := at
		m.ReadAt = &t
		n++
	}
	return n, nil
}

func (r *memRepo) SoftDelete(_ context.Context, userID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.messages[id]
		if !ok || m.DeletedForUser(userID) {
			continue
		}
		if c := r.convs[m.ConversationID]; c == nil || !c.HasParticipant(userID) {
			continue
		}
		m.DeletedFor = append(m.DeletedFor, userID)
		n++
	}
	return n, nil
}

func (r *memRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	counts, _ := r.CountUnreadByConversation(ctx, userID)
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (r *memRepo) CountUnreadByConversation(_ context.Context, userID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, m := range r.messages {
		if !m.IsRead && r.addressedTo(m, userID) && !m.DeletedForUser(userID) {
			counts[m.ConversationID]++
		}
	}
	return counts, nil
}

func (r *memRepo) InsertOutbox(_ context.Context, _ *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, outboxRow{aggregateType, aggregateID, eventType, payload})
	return nil
}

func (r *memRepo) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// mockTransactor runs fn without a real transaction.
type mockTransactor struct{}

func (m *mockTransactor) WithTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return fn(ctx, nil)
}

type fakeDirectory map[string]*domain.UserSummary

func (d fakeDirectory) GetUser(_ context.Context, id string) (*domain.UserSummary, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (d fakeDirectory) GetUsers(_ context.Context, ids []string) (map[string]*domain.UserSummary, error) {
	out := make(map[string]*domain.UserSummary)
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeCatalog struct{ err error }

func (c fakeCatalog) GetProperty(_ context.Context, id string) (*domain.PropertySummary, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &domain.PropertySummary{ID: id, Title: "Flat " + id}, nil
}

// countingCatalog records calls per property. When gate is set, each call
// waits until gate callers are in flight at once, or the wait times out.
type countingCatalog struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight int
	gate     int
	released chan struct{}
	overlap  bool
}

func newCountingCatalog(gate int) *countingCatalog {
	return &countingCatalog{calls: make(map[string]int), gate: gate, released: make(chan struct{})}
}

func (c *countingCatalog) GetProperty(_ context.Context, id string) (*domain.PropertySummary, error) {
	c.mu.Lock()
	c.calls[id]++
	c.inFlight++
	if c.gate > 0 && c.inFlight == c.gate && !c.overlap {
		c.overlap = true
		close(c.released)
	}
	gated := c.gate > 0
	c.mu.Unlock()

	if gated {
		select {
		case <-c.released:
		case <-time.After(2 * time.Second):
		}
	}

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return &domain.PropertySummary{ID: id, Title: "Flat " + id}, nil
}

func (c *countingCatalog) callsFor(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func (c *countingCatalog) sawOverlap() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlap
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, room, eventType, conversationID string, data interface{}) error {
	args := m.Called(ctx, room, eventType, conversationID, data)
	return args.Error(0)
}

func newTestService(repo *memRepo, pub EventPublisher) *Service {
	users := fakeDirectory{
		"tenant": {ID: "tenant", Name: "Tina Tenant", Role: "tenant"},
		"owner":  {ID: "owner", Name: "Oscar Owner", Role: "owner"},
		"other":  {ID: "other", Name: "Olga Other", Role: "tenant"},
	}
	s := New(repo, &mockTransactor{}, users, fakeCatalog{}, pub, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	s.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	return s
}
