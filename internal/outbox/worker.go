package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/tx"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type event struct {
	id            int64
	aggregateType string
	aggregateID   string
	eventType     string
	payload       []byte
	createdAt     time.Time
	retryCount    int
}

type action int

const (
	actionRetry action = iota
	actionDeadLetter
)

// onFailure decides what happens to an event whose publish just failed.
func onFailure(retryCount, maxRetries int) action {
	if retryCount >= maxRetries {
		return actionDeadLetter
	}
	return actionRetry
}

// Worker relays committed outbox rows to Kafka. Rows are claimed with
// SKIP LOCKED so several server instances can run a worker each.
type Worker struct {
	DB         *sql.DB
	Tx         tx.Transactor
	Producer   Publisher
	Topic      string
	BatchSize  int
	PollDelay  time.Duration
	MaxRetries int
	// Retention bounds how long published rows are kept. Zero keeps them.
	Retention time.Duration
}

func (w *Worker) Start(ctx context.Context) {
	log := observability.GetLogger(ctx)
	if w.BatchSize <= 0 {
		w.BatchSize = 100
	}
	if w.PollDelay <= 0 {
		w.PollDelay = 500 * time.Millisecond
	}
	if w.MaxRetries <= 0 {
		w.MaxRetries = 3
	}

	lastPurge := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := w.processBatch(ctx)
		if err != nil {
			log.Error("outbox error", zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if n == 0 {
			sleep(ctx, w.PollDelay)
		}

		if w.Retention > 0 && time.Since(lastPurge) > time.Hour {
			if err := w.purge(ctx); err != nil {
				log.Warn("outbox purge failed", zap.Error(err))
			}
			lastPurge = time.Now()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// processBatch publishes up to BatchSize pending rows and reports how many it
// claimed. It stops at the first failure so per-key order is preserved.
func (w *Worker) processBatch(ctx context.Context) (int, error) {
	var (
		claimed  int
		batchErr error
	)

	err := w.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		batchErr = nil
		events, err := claim(ctx, tx, w.BatchSize)
		if err != nil {
			return err
		}
		claimed = len(events)

		for _, e := range events {
			pubErr := w.Producer.Publish(ctx, w.Topic, []byte(e.aggregateID), e.payload)
			if pubErr == nil {
				if _, err := tx.ExecContext(ctx, `
					UPDATE outbox_events SET processed_at = now() WHERE id = $1
				`, e.id); err != nil {
					return err
				}
				continue
			}

			observability.OutboxPublishFailuresTotal.WithLabelValues(w.Topic).Inc()
			if err := w.recordFailure(ctx, tx, e, pubErr); err != nil {
				return err
			}
			batchErr = pubErr
			break
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return claimed, batchErr
}

func claim(ctx context.Context, tx *sql.Tx, limit int) ([]event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, retry_count
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event
	for rows.Next() {
		var e event
		if err := rows.Scan(&e.id, &e.aggregateType, &e.aggregateID, &e.eventType, &e.payload, &e.createdAt, &e.retryCount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (w *Worker) recordFailure(ctx context.Context, tx *sql.Tx, e event, cause error) error {
	if onFailure(e.retryCount, w.MaxRetries) == actionRetry {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET retry_count = retry_count + 1, error = $2
			WHERE id = $1
		`, e.id, cause.Error())
		return err
	}

	observability.GetLogger(ctx).Error("outbox event dead-lettered",
		zap.Int64("id", e.id),
		zap.String("event_type", e.eventType),
		zap.String("aggregate_id", e.aggregateID),
		zap.Error(cause),
	)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, created_at, failed_at, error, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
	`, e.id, e.aggregateType, e.aggregateID, e.eventType, e.payload, e.createdAt, cause.Error(), e.retryCount+1); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, e.id)
	return err
}

func (w *Worker) purge(ctx context.Context) error {
	_, err := w.DB.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE processed_at IS NOT NULL AND processed_at < $1
	`, time.Now().Add(-w.Retention))
	return err
}
