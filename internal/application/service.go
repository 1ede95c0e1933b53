package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/repository"
	"github.com/Rdemo143/RenTO/internal/tx"
)

// UserDirectory resolves display profiles. Unknown ids are absent from
// GetUsers results.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.UserSummary, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*domain.UserSummary, error)
}

type PropertyCatalog interface {
	GetProperty(ctx context.Context, id string) (*domain.PropertySummary, error)
}

// EventPublisher delivers realtime events to a room. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, room, eventType, conversationID string, data interface{}) error
}

type Service struct {
	repo    repository.Repository
	tx      tx.Transactor
	users   UserDirectory
	catalog PropertyCatalog
	events  EventPublisher
	log     *zap.Logger
	now     func() time.Time
}

func New(
	repo repository.Repository,
	transactor tx.Transactor,
	users UserDirectory,
	catalog PropertyCatalog,
	events EventPublisher,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		tx:      transactor,
		users:   users,
		catalog: catalog,
		events:  events,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// userSummary falls back to an id-only summary for users the directory no
// longer knows about, so history stays readable.
func userSummary(users map[string]*domain.UserSummary, id string) domain.UserSummary {
	if u, ok := users[id]; ok && u != nil {
		return *u
	}
	return domain.UserSummary{ID: id}
}

func (s *Service) propertySummary(ctx context.Context, id string) *domain.PropertySummary {
	if id == "" {
		return nil
	}
	if s.catalog != nil {
		p, err := s.catalog.GetProperty(ctx, id)
		if err == nil && p != nil {
			return p
		}
		if err != nil {
			s.log.Debug("property lookup failed", zap.String("property_id", id), zap.Error(err))
		}
	}
	return &domain.PropertySummary{ID: id}
}

const propertyLookupConcurrency = 8

// propertySummaries resolves each distinct property id once, with a bounded
// number of catalog calls in flight.
func (s *Service) propertySummaries(ctx context.Context, ids []string) map[string]*domain.PropertySummary {
	out := make(map[string]*domain.PropertySummary)
	var distinct []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = nil
		distinct = append(distinct, id)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, propertyLookupConcurrency)
	)
	for _, id := range distinct {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			p := s.propertySummary(ctx, id)
			mu.Lock()
			out[id] = p
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

func (s *Service) publish(ctx context.Context, room, eventType, convID string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, room, eventType, convID, data); err != nil {
		s.log.Warn("realtime publish failed",
			zap.String("room", room),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
