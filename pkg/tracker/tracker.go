// Package tracker is the task lifecycle service: it runs the create
// pipeline (analyze, assemble, validate dependencies, persist, notify) and
// the status, progress and time-logging updates.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/analysis"
	"github.com/harrisonrobin/taskpilot/pkg/analytics"
	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/notify"
	"github.com/harrisonrobin/taskpilot/pkg/store"
)

var (
	ErrInvalidHours          = errors.New("hours must be a positive finite number")
	ErrUnresolvedDependency  = errors.New("unresolved dependency")
	ErrInvalidDependencyMode = errors.New("invalid dependency policy")
)

// DependencyPolicy decides what happens when a new task depends on ids the
// store does not know.
type DependencyPolicy string

const (
	DependencyWarn   DependencyPolicy = "warn"
	DependencyReject DependencyPolicy = "reject"
	DependencyIgnore DependencyPolicy = "ignore"
)

func ParseDependencyPolicy(s string) (DependencyPolicy, error) {
	switch p := DependencyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DependencyWarn, nil
	case DependencyWarn, DependencyReject, DependencyIgnore:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDependencyMode, s)
}

type CreateRequest struct {
	Description string
	Category    string
	Overrides   assembler.Overrides
}

type CreateResult struct {
	Task *model.Task
	// FromOracle reports whether the suggestions came from the oracle or
	// from defaults.
	FromOracle bool
	// Notices are informational, e.g. the oracle fell back to defaults.
	Notices []string
	// Warnings flag suspicious input that was still accepted.
	Warnings []string
	Notified bool
}

type Service struct {
	engine    *analysis.Engine
	assembler *assembler.Assembler
	store     store.Store
	notifier  notify.Notifier
	// updates hears about every change after creation.
	updates notify.Notifier
	policy    DependencyPolicy
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithUpdateNotifier sets the notifier called after a status, progress or
// time change has been stored. Its failures are logged, never returned.
func WithUpdateNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.updates = n }
}

func WithDependencyPolicy(p DependencyPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(engine *analysis.Engine, asm *assembler.Assembler, st store.Store, opts ...Option) *Service {
	s := &Service{
		engine:    engine,
		assembler: asm,
		store:     st,
		policy:    DependencyWarn,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Preview runs analysis only; nothing is persisted.
func (s *Service) Preview(ctx context.Context, description, category string) (analysis.Analysis, error) {
	return s.engine.Analyze(ctx, description, category)
}

func (s *Service) CreateTask(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, model.ErrEmptyDescription
	}

	a, err := s.engine.Analyze(ctx, req.Description, req.Category)
	if err != nil {
		return nil, err
	}
	res := &CreateResult{FromOracle: a.FromOracle}
	if a.Notice != "" {
		res.Notices = append(res.Notices, a.Notice)
	}

	task, err := s.assembler.Assemble(req.Description, req.Category, a.Attributes, req.Overrides)
	if err != nil {
		return nil, err
	}

	warnings, err := s.checkDependencies(ctx, task.Dependencies)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	id, err := s.store.Insert(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}
	task.ID = id
	res.Task = task
	if s.metrics != nil {
		s.metrics.TasksCreatedTotal.WithLabelValues(string(task.Category)).Inc()
	}
	s.logger.Info("task created",
		zap.String("task_id", id),
		zap.String("priority", string(task.Priority)),
		zap.String("due_date", task.DueDate),
		zap.Bool("from_oracle", a.FromOracle))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, task); err != nil {
			s.logger.Warn("notification failed", zap.String("task_id", id), zap.Error(err))
			res.Notices = append(res.Notices, fmt.Sprintf("task saved but notification failed: %v", err))
			s.countNotification("failure")
		} else {
			res.Notified = true
			s.countNotification("success")
		}
	}
	return res, nil
}

func (s *Service) countNotification(status string) {
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Service) checkDependencies(ctx context.Context, deps []string) ([]string, error) {
	if len(deps) == 0 || s.policy == DependencyIgnore {
		return nil, nil
	}
	found, err := s.store.Find(ctx, store.Filter{IDs: deps})
	if err != nil {
		return nil, fmt.Errorf("resolve dependencies: %w", err)
	}
	known := make(map[string]bool, len(found))
	for _, t := range found {
		known[t.ID] = true
	}
	var missing []string
	for _, id := range deps {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if s.policy == DependencyReject {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedDependency, strings.Join(missing, ", "))
	}
	warnings := make([]string, 0, len(missing))
	for _, id := range missing {
		warnings = append(warnings, fmt.Sprintf("dependency %s does not match any task", id))
	}
	return warnings, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.Filter) ([]model.Task, error) {
	return s.store.Find(ctx, f)
}

// UpdateStatus moves a task to status. The completion date is written only
// on the first transition into Completed; the store applies the check and
// the write as one step.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Task, error) {
	if !slices.Contains(model.Statuses, status) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}
	t, err := s.store.Update(ctx, id, store.Update{Status: &status, At: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task status updated", zap.String("task_id", id), zap.String("status", string(status)))
	s.notifyUpdate(ctx, t)
	return t, nil
}

// LogTime appends a time entry and adds hours to the running total.
func (s *Service) LogTime(ctx context.Context, id string, hours float64, description string) (*model.Task, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHours, hours)
	}
	at := s.now().UTC()
	entry := model.TimeEntry{Hours: hours, Description: strings.TrimSpace(description), Timestamp: at}
	t, err := s.store.Update(ctx, id, store.Update{AddHours: hours, AppendEntry: &entry, At: at})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TimeLoggedHoursTotal.Add(hours)
	}
	s.notifyUpdate(ctx, t)
	return t, nil
}

// SetProgress stores percent clamped into [0, 100].
func (s *Service) SetProgress(ctx context.Context, id string, percent int) (*model.Task, error) {
	percent = min(max(percent, 0), 100)
	t, err := s.store.Update(ctx, id, store.Update{Progress: &percent, At: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	s.notifyUpdate(ctx, t)
	return t, nil
}

func (s *Service) notifyUpdate(ctx context.Context, t *model.Task) {
	if s.updates == nil {
		return
	}
	if err := s.updates.Notify(ctx, t); err != nil {
		s.logger.Warn("update notification failed", zap.String("task_id", t.ID), zap.Error(err))
		s.countNotification("failure")
		return
	}
	s.countNotification("success")
}

// Overdue lists open tasks whose due date has passed.
func (s *Service) Overdue(ctx context.Context) ([]model.Task, error) {
	open := make([]model.Status, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		if st != model.StatusCompleted {
			open = append(open, st)
		}
	}
	tasks, err := s.store.Find(ctx, store.Filter{Statuses: open})
	if err != nil {
		return nil, err
	}
	now := s.now()
	overdue := []model.Task{}
	for i := range tasks {
		if tasks[i].IsOverdue(now) {
			overdue = append(overdue, tasks[i])
		}
	}
	return overdue, nil
}

func (s *Service) Analytics(ctx context.Context) (analytics.Report, error) {
	tasks, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		return analytics.Report{}, err
	}
	return analytics.Calculate(tasks, s.now()), nil
}
