// Package notify tells the outside world about newly created tasks.
// Notification is best-effort: a failure is reported, never rolled back.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

type Notifier interface {
	Notify(ctx context.Context, t *model.Task) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, t *model.Task) error

func (f Func) Notify(ctx context.Context, t *model.Task) error { return f(ctx, t) }

// Log writes one structured line per task.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, t *model.Task) error {
	l.logger.Info("task created",
		zap.String("task_id", t.ID),
		zap.String("description", t.Description),
		zap.String("category", string(t.Category)),
		zap.String("priority", string(t.Priority)),
		zap.String("due_date", t.DueDate),
		zap.Float64("estimated_hours", t.EstimatedHours),
		zap.String("assignee", t.Assignee))
	return nil
}

// Multi calls every notifier in order, even after a failure, and joins the
// errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t *model.Task) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
