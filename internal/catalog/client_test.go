package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rdemo143/RenTO/internal/domain"
)

func TestClient_GetProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/properties/p1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"_id":"p1","title":"Sunny loft","address":"1 Main St","photos":["a.jpg"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, Options{}, nil)

	p, err := c.GetProperty(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, &domain.PropertySummary{ID: "p1", Title: "Sunny loft", Address: "1 Main St", Photos: []string{"a.jpg"}}, p)

	_, err = c.GetProperty(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{MaxFailures: 2, OpenFor: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := c.GetProperty(context.Background(), "p1")
		require.Error(t, err)
	}

	_, err := c.GetProperty(context.Background(), "p1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_NoBaseURL(t *testing.T) {
	c := New("", Options{}, nil)
	p, err := c.GetProperty(context.Background(), "p7")
	require.NoError(t, err)
	assert.Equal(t, "p7", p.ID)
}
