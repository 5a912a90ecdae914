package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/auth"
	"github.com/harrisonrobin/taskpilot/pkg/config"
	"github.com/harrisonrobin/taskpilot/pkg/google"
	"github.com/harrisonrobin/taskpilot/pkg/logging"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/taskwarrior"
)

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Calendar access, replacing any stored token",
		Args:  cobra.NoArgs,
		RunE:  runAuth,
	}

	setCalendarCmd = &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the Google Calendar that receives task events",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetCalendar,
	}

	hookBackground bool

	hookCmd = &cobra.Command{
		Use:   "hook",
		Short: "Taskwarrior on-add/on-modify hook",
		Long: `Install as a Taskwarrior on-add and on-modify hook. The task JSON read
from stdin is echoed back immediately; the import into taskpilot runs in a
detached background process so Taskwarrior is never kept waiting on analysis.`,
		Args: cobra.NoArgs,
		RunE: runHook,
	}
)

func init() {
	hookCmd.Flags().BoolVar(&hookBackground, "background", false, "internal: process tasks from stdin in the background")
	_ = hookCmd.Flags().MarkHidden("background")
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.GetConfigPath()
}

func runSetCalendar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Calendar = strings.TrimSpace(args[0])
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", cfg.Calendar)
	return nil
}

func runAuth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	dir, err := config.GetXdgHome()
	if err != nil {
		return err
	}

	authz := &auth.Authorizer{Dir: dir, Scopes: google.Scopes, Prompt: cmd.ErrOrStderr(), Logger: logger.Named("auth")}
	if err := authz.Reauthorize(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful, token saved to %s\n", authz.TokenPath())

	calendarName := cfg.Calendar
	if flagCalendar != "" {
		calendarName = flagCalendar
	}
	if calendarName == "" {
		return nil
	}
	httpClient, err := authz.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := google.NewClient(ctx, httpClient, calendarName, google.Options{Logger: logger}); err != nil {
		return fmt.Errorf("calendar %q is not reachable: %w", calendarName, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Calendar %q found\n", calendarName)
	return nil
}

func runHook(cmd *cobra.Command, _ []string) error {
	tasks, err := taskwarrior.ParseTasks(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("error parsing tasks from stdin: %w", err)
	}
	if hookBackground {
		return withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			return hookSync(ctx, a, tasks)
		})(cmd, nil)
	}

	// Taskwarrior expects the resulting task back on stdout.
	if len(tasks) == 0 {
		return nil
	}
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(tasks[len(tasks)-1]); err != nil {
		return err
	}
	return spawnBackground(tasks)
}

func spawnBackground(tasks []taskwarrior.Task) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not find self: %w", err)
	}
	args := []string{"hook", "--background"}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	if flagCalendar != "" {
		args = append(args, "--calendar", flagCalendar)
	}
	if flagStore != "" {
		args = append(args, "--store", flagStore)
	}
	bg := exec.Command(self, args...)
	stdin, err := bg.StdinPipe()
	if err != nil {
		return fmt.Errorf("could not open stdin pipe: %w", err)
	}
	if err := bg.Start(); err != nil {
		return fmt.Errorf("could not start background process: %w", err)
	}
	if err := json.NewEncoder(stdin).Encode(tasks); err != nil {
		_ = stdin.Close()
		return err
	}
	return stdin.Close()
}

// hookSync imports a newly added task, or carries a status change of an
// already imported one over. One task on stdin is an add; two are the old
// and new versions of a modification.
func hookSync(ctx context.Context, a *app, tasks []taskwarrior.Task) error {
	switch len(tasks) {
	case 0:
		return nil
	case 1:
		rep := a.svc.Import(ctx, taskwarrior.ImportItems(tasks, time.Local))
		for _, f := range rep.Failed {
			a.logger.Warn("hook import failed", zap.String("source", f.Source), zap.Error(f.Err))
		}
		return nil
	}

	updated := tasks[len(tasks)-1]
	all, err := a.svc.List(ctx, store.Filter{})
	if err != nil {
		return err
	}
	marker := taskwarrior.Marker(updated.UUID)
	for i := range all {
		t := &all[i]
		if !strings.Contains(t.Notes, marker) {
			continue
		}
		if hiddenInTaskwarrior(updated) {
			a.unsyncCalendar(ctx, t.ID)
			return nil
		}
		status := taskwarrior.TrackerStatus(updated)
		if status == "" {
			status = model.InitialStatus()
		}
		if status == t.Status {
			return nil
		}
		_, err := a.svc.UpdateStatus(ctx, t.ID, status)
		return err
	}
	a.logger.Debug("modified task was never imported", zap.String("uuid", updated.UUID))
	return nil
}

// hiddenInTaskwarrior reports whether t left the active list without being
// completed: deleted, waiting or blocked.
func hiddenInTaskwarrior(t taskwarrior.Task) bool {
	if t.Status == taskwarrior.DELETED || t.Status == taskwarrior.WAITING {
		return true
	}
	return slices.Contains(t.Tags, "BLOCKED")
}
