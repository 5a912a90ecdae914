package tracker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// ImportItem is one task read from an external source.
type ImportItem struct {
	// Source locates the item for error reports, e.g. "line 4".
	Source  string
	Request CreateRequest
	// Status, when set to a non-initial status, is applied after creation.
	Status model.Status
}

type ImportFailure struct {
	Source string
	Err    error
}

func (f ImportFailure) Error() string { return fmt.Sprintf("%s: %v", f.Source, f.Err) }

type ImportReport struct {
	Created  []*model.Task
	Failed   []ImportFailure
	Warnings []string
}

// Import runs every item through CreateTask. A failing item is reported and
// the rest continue.
func (s *Service) Import(ctx context.Context, items []ImportItem) ImportReport {
	var rep ImportReport
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, ImportFailure{Source: item.Source, Err: err})
			continue
		}
		res, err := s.CreateTask(ctx, item.Request)
		if err != nil {
			rep.Failed = append(rep.Failed, ImportFailure{Source: item.Source, Err: err})
			continue
		}
		for _, w := range res.Warnings {
			rep.Warnings = append(rep.Warnings, item.Source+": "+w)
		}
		task := res.Task
		if item.Status != "" && item.Status != task.Status {
			updated, err := s.UpdateStatus(ctx, task.ID, item.Status)
			if err != nil {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: created but status not set: %v", item.Source, err))
			} else {
				task = updated
			}
		}
		rep.Created = append(rep.Created, task)
	}
	s.logger.Info("import finished",
		zap.Int("created", len(rep.Created)),
		zap.Int("failed", len(rep.Failed)))
	return rep
}
