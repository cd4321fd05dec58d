package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/eoafashion/storefront-api/internal/obs"
)

// TaskType is the asynq task type carrying a Record payload.
const TaskType = "checkout:audit"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "audit"

// TaskClient is the subset of *asynq.Client used to enqueue records.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes checkout audit records to asynq.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Now      func() time.Time
}

func (e Enqueuer) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// NewTask encodes a record as an asynq task.
func NewTask(rec Record) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("audit: encode record: %w", err)
	}
	return asynq.NewTask(TaskType, payload), nil
}

// Record enqueues rec for asynchronous persistence.
func (e Enqueuer) Record(ctx context.Context, rec Record) error {
	if e.Client == nil {
		return errors.New("audit: task client not configured")
	}
	if err := rec.Normalize(e.now()); err != nil {
		return err
	}
	task, err := NewTask(rec)
	if err != nil {
		return err
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 10
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(maxRetry), asynq.TaskID(rec.ID))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		observe("enqueue", "error")
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	observe("enqueue", "ok")
	return nil
}

// Writer persists records.
type Writer interface {
	Insert(ctx context.Context, rec Record) error
}

// Handler consumes audit tasks and writes them through Writer.
type Handler struct {
	Writer Writer
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var rec Record
	if err := json.Unmarshal(task.Payload(), &rec); err != nil {
		observe("write", "malformed")
		return fmt.Errorf("audit: decode record: %v: %w", err, asynq.SkipRetry)
	}
	if err := rec.Normalize(time.Now()); err != nil {
		observe("write", "malformed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if h.Writer == nil {
		return errors.New("audit: writer not configured")
	}
	if err := h.Writer.Insert(ctx, rec); err != nil {
		observe("write", "error")
		h.Logger.Error().Err(err).Str("audit_id", rec.ID).Str("cart_id", rec.CartID).Msg("audit_write_failed")
		return err
	}
	observe("write", "ok")
	h.Logger.Debug().Str("audit_id", rec.ID).Str("status", string(rec.Status)).Msg("audit_written")
	return nil
}

// Register mounts the handler on an asynq mux.
func (h Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskType, h)
}

func observe(stage, result string) {
	if obs.AuditRecordsTotal != nil {
		obs.AuditRecordsTotal.WithLabelValues(stage, result).Inc()
	}
}
