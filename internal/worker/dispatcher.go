package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Dispatcher enqueues analysis jobs onto the task queue. It is the only
// producer-side surface the live path touches: enqueue and return, never
// wait for the result.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher wraps an asynq client built from the shared Redis options.
func NewDispatcher(opt asynq.RedisClientOpt) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(opt)}
}

// DispatchAnalysis enqueues analysis of one chat and returns the task id for
// log correlation. The job runs with retries on the analysis queue; the
// caller treats enqueue failure as log-only.
func (d *Dispatcher) DispatchAnalysis(ctx context.Context, chatID, userID int64) (string, error) {
	task, err := NewAnalyzeChatTask(chatID, userID)
	if err != nil {
		return "", err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueAnalysis),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue analysis task: %w", err)
	}
	return info.ID, nil
}

// Close releases the underlying client.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}
