package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
)

// Client fetches property summaries from the listings service. Calls go
// through a circuit breaker so a struggling catalog does not slow down
// conversation reads.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

type Options struct {
	Timeout     time.Duration
	MaxFailures uint32
	OpenFor     time.Duration
}

func New(baseURL string, opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	st := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  gobreaker.NewCircuitBreaker(st),
		log: log,
	}
}

type propertyPayload struct {
	ID      string   `json:"id"`
	MongoID string   `json:"_id"`
	Title   string   `json:"title"`
	Address string   `json:"address"`
	Photos  []string `json:"photos"`
}

// GetProperty returns ErrPropertyNotFound for unknown ids. A 404 does not
// count against the breaker.
func (c *Client) GetProperty(ctx context.Context, id string) (*domain.PropertySummary, error) {
	if c.baseURL == "" {
		return &domain.PropertySummary{ID: id}, nil
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/properties/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			_, _ = io.Copy(io.Discard, resp.Body)
			return (*domain.PropertySummary)(nil), nil
		case resp.StatusCode != http.StatusOK:
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("catalog status %d", resp.StatusCode)
		}

		var p propertyPayload
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode property: %w", err)
		}
		if p.ID == "" {
			p.ID = p.MongoID
		}
		if p.ID == "" {
			p.ID = id
		}
		return &domain.PropertySummary{ID: p.ID, Title: p.Title, Address: p.Address, Photos: p.Photos}, nil
	})
	if err != nil {
		return nil, err
	}

	p, _ := res.(*domain.PropertySummary)
	if p == nil {
		return nil, domain.ErrPropertyNotFound
	}
	return p, nil
}
