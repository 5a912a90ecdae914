package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harrisonrobin/taskpilot/pkg/server"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and sweep overdue tasks periodically",
		Args:  cobra.NoArgs,
		RunE:  withApp(runServe),
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Mark calendar events of overdue tasks once",
		Args:  cobra.NoArgs,
		RunE:  withApp(runSweep),
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	interval := a.cfg.Server.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	gin.SetMode(server.Mode(a.cfg.Logging.Level))
	srv := server.New(a.svc, a.registry, a.metrics, a.logger.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, _, err := sweepOverdue(gctx, a); err != nil {
				a.logger.Warn("overdue sweep failed", zap.Error(err))
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

func runSweep(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	overdue, patched, err := sweepOverdue(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d overdue tasks, %d calendar events marked\n", overdue, patched)
	return nil
}

// sweepOverdue refreshes the overdue gauge and, when calendar sync is on,
// prefixes newly overdue events.
func sweepOverdue(ctx context.Context, a *app) (overdue, patched int, err error) {
	tasks, err := a.svc.Overdue(ctx)
	if err != nil {
		return 0, 0, err
	}
	a.metrics.OverdueTasks.Set(float64(len(tasks)))
	if a.calendar == nil {
		return len(tasks), 0, nil
	}
	if patched, err = a.calendar.SweepOverdue(ctx); err != nil {
		return len(tasks), patched, err
	}
	if err := a.calendar.Save(); err != nil {
		a.logger.Warn("failed to save calendar state", zap.Error(err))
	}
	a.logger.Info("overdue sweep done", zap.Int("overdue", len(tasks)), zap.Int("patched", patched))
	return len(tasks), patched, nil
}
