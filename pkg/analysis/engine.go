// Package analysis turns a free-text task description into suggested task
// attributes. The suggestion oracle is a fallible collaborator: any failure
// degrades to a fixed default record and a notice, never an error.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/oracle"
)

// ErrEmptyDescription is returned by Analyze for blank descriptions.
var ErrEmptyDescription = model.ErrEmptyDescription

const (
	DefaultEstimatedHours = 4.0
	DefaultTimeout        = 30 * time.Second
	DefaultTag            = "general"
)

type Config struct {
	Priorities model.PriorityScheme
	Hours      model.HoursBounds
	// DefaultHours is the estimate used when the oracle gives none.
	DefaultHours float64
	// Timeout bounds a single oracle call. Zero disables the bound.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Priorities:   model.ThreeLevel,
		Hours:        model.DefaultHoursBounds,
		DefaultHours: DefaultEstimatedHours,
		Timeout:      DefaultTimeout,
	}
}

// Analysis is the outcome of one Analyze call.
type Analysis struct {
	Attributes model.TaskAttributes
	// FromOracle is false when the defaults were returned because the oracle
	// was unavailable or failed.
	FromOracle bool
	// Notice is a user-facing, non-blocking message; empty on success.
	Notice string
	// Discarded lists fields whose oracle candidates failed validation.
	Discarded []string
}

type Engine struct {
	oracle  oracle.Oracle
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine around o. A nil o is allowed and behaves like an
// oracle that always fails.
func NewEngine(o oracle.Oracle, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Hours.Max <= 0 || cfg.Hours.Min <= 0 || cfg.Hours.Min > cfg.Hours.Max {
		cfg.Hours = model.DefaultHoursBounds
	}
	if h, ok := cfg.Hours.Normalize(cfg.DefaultHours); ok {
		cfg.DefaultHours = h
	} else {
		cfg.DefaultHours, _ = cfg.Hours.Normalize(DefaultEstimatedHours)
	}
	e := &Engine{oracle: o, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Defaults returns the record used when nothing better is known: due
// tomorrow, Medium priority, the configured estimate, tag "general".
func (e *Engine) Defaults() model.TaskAttributes {
	return model.TaskAttributes{
		DueDate:        model.FormatDate(e.now().AddDate(0, 0, 1)),
		Priority:       model.PriorityMedium,
		EstimatedHours: e.cfg.DefaultHours,
		Tags:           []string{DefaultTag},
		Complexity:     model.ComplexityMedium,
	}
}

// Analyze makes a single oracle call and returns the validated suggestion.
// The only error is ErrEmptyDescription.
func (e *Engine) Analyze(ctx context.Context, description, category string) (Analysis, error) {
	if strings.TrimSpace(description) == "" {
		return Analysis{}, ErrEmptyDescription
	}
	defaults := e.Defaults()

	if e.oracle == nil {
		e.count(metrics.OutcomeUnconfigured)
		return Analysis{
			Attributes: defaults,
			Notice:     "no suggestion service configured; using default attributes",
		}, nil
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	prompt := BuildPrompt(description, category, e.now(), e.cfg.Priorities, e.cfg.Hours)
	start := time.Now()
	text, err := e.oracle.Suggest(ctx, prompt)
	if e.metrics != nil {
		e.metrics.OracleLatencySeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.Warn("suggestion oracle failed, using defaults",
			zap.String("oracle", e.oracle.Name()),
			zap.Error(err))
		e.count(metrics.OutcomeFallback)
		return Analysis{
			Attributes: defaults,
			Notice:     fmt.Sprintf("could not analyze task, using default attributes: %v", err),
		}, nil
	}

	s := ParseSuggestion(text, e.cfg.Priorities, e.cfg.Hours)
	for _, field := range s.Discarded {
		e.logger.Debug("discarded invalid oracle value", zap.String("field", field))
		if e.metrics != nil {
			e.metrics.DiscardedValuesTotal.WithLabelValues("oracle", field).Inc()
		}
	}
	e.count(metrics.OutcomeOracle)
	return Analysis{
		Attributes: s.ApplyTo(defaults),
		FromOracle: true,
		Discarded:  s.Discarded,
	}, nil
}

func (e *Engine) count(outcome string) {
	if e.metrics != nil {
		e.metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	}
}
