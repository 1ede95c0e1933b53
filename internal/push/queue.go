package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/observability"
)

const TaskTypeSend = "push:send"

// dedupeRetention keeps finished tasks around so a redelivered event within
// the window still collides on its task id.
const dedupeRetention = time.Hour

// ErrAlreadyQueued means a task with the same id was enqueued before.
var ErrAlreadyQueued = errors.New("push: notification already queued")

// TaskID is the dedupe key for one recipient of one message.
func TaskID(messageID, userID string) string {
	return messageID + ":" + userID
}

// TaskQueue enqueues push deliveries onto asynq.
type TaskQueue struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewTaskQueue(redis asynq.RedisClientOpt, queue string, maxRetry int) *TaskQueue {
	return &TaskQueue{client: asynq.NewClient(redis), queue: queue, maxRetry: maxRetry}
}

// Enqueue queues n under taskID. A second enqueue with the same id returns
// ErrAlreadyQueued.
func (q *TaskQueue) Enqueue(ctx context.Context, taskID string, n Notification) (string, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeSend, payload), q.options(taskID)...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return taskID, ErrAlreadyQueued
		}
		return "", err
	}
	return info.ID, nil
}

func (q *TaskQueue) options(taskID string) []asynq.Option {
	opts := []asynq.Option{asynq.Queue(q.queue), asynq.Retention(dedupeRetention)}
	if taskID != "" {
		opts = append(opts, asynq.TaskID(taskID))
	}
	if q.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(q.maxRetry))
	}
	return opts
}

func (q *TaskQueue) Close() error {
	return q.client.Close()
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// HandleSend is the asynq handler for TaskTypeSend. Rejected tokens are not
// retried.
func HandleSend(sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var n Notification
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			observability.PushNotificationsTotal.WithLabelValues("malformed").Inc()
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		err := sender.Send(ctx, n)
		switch {
		case err == nil:
			observability.PushNotificationsTotal.WithLabelValues("sent").Inc()
			return nil
		case errors.Is(err, ErrInvalidToken):
			observability.PushNotificationsTotal.WithLabelValues("invalid_token").Inc()
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			observability.PushNotificationsTotal.WithLabelValues("failed").Inc()
			return err
		}
	}
}

// TaskServer runs the asynq workers that deliver queued notifications.
type TaskServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewTaskServer(redis asynq.RedisClientOpt, queue string, concurrency int, sender Sender) *TaskServer {
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			observability.GetLogger(ctx).Warn("push task failed",
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSend, HandleSend(sender))
	return &TaskServer{server: srv, mux: mux}
}

// Run starts the workers and blocks until ctx is canceled.
func (s *TaskServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
