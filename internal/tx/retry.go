package tx

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"

	"github.com/Rdemo143/RenTO/internal/observability"
)

const (
	defaultAttempts  = 5
	defaultBaseDelay = 20 * time.Millisecond
	defaultMaxDelay  = 500 * time.Millisecond
)

var ErrRetryExhausted = errors.New("transient store error: retry exhausted")

// Policy is a bounded exponential backoff for transient store failures.
// The zero value uses the package defaults.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Retry runs fn under the default policy.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return Policy{}.Do(ctx, fn)
}

func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		observability.StoreRetriesTotal.Inc()
		observability.GetLogger(ctx).Debug("retrying transient store error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return errors.Join(ErrRetryExhausted, err)
}

// IsTransient reports whether err is worth retrying: serialization failures,
// deadlocks, connection loss and connection exhaustion.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "53300", "57P01":
			return true
		}
		return pqErr.Code.Class() == "08"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(err.Error(), "could not serialize")
}
