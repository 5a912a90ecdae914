package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagStore    string
	flagCalendar string
	flagLogLevel string

	rootCmd = &cobra.Command{
		Use:   "taskpilot",
		Short: "Track tasks with suggested due dates, priorities and estimates",
		Long: `taskpilot turns a free-text task description into a tracked task.
A language model suggests the due date, priority, estimate and tags;
anything you pass explicitly wins. Tasks can be mirrored to Google Calendar.`,
		SilenceUsage: true,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.config/taskpilot/config.yaml)")
	pf.StringVar(&flagStore, "store", "", "store backend override: memory, badger or mongo")
	pf.StringVar(&flagCalendar, "calendar", "", "Google Calendar name to sync with (overrides config)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		addCmd, listCmd, showCmd, statusCmd, progressCmd, logCmd,
		statsCmd, exportCmd, importCmd,
		serveCmd, sweepCmd,
		authCmd, setCalendarCmd, hookCmd,
	)
}

type appFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp builds the app for one command run and closes it afterwards.
func withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd, args)
	}
}
