package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnFailure(t *testing.T) {
	tests := []struct {
		retries, max int
		want         action
	}{
		{0, 3, actionRetry},
		{2, 3, actionRetry},
		{3, 3, actionDeadLetter},
		{7, 3, actionDeadLetter},
		{0, 0, actionDeadLetter},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, onFailure(tt.retries, tt.max), "retries=%d max=%d", tt.retries, tt.max)
	}
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
