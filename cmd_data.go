package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskpilot/pkg/csvio"
	"github.com/harrisonrobin/taskpilot/pkg/orgmode"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/taskwarrior"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

const (
	formatCSV         = "csv"
	formatTaskwarrior = "taskwarrior"
	formatOrg         = "org"
)

var (
	statsJSON bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show completion, hours and overdue analytics",
		Args:  cobra.NoArgs,
		RunE:  withApp(runStats),
	}

	exportOut string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export every task as CSV",
		Args:  cobra.NoArgs,
		RunE:  withApp(runExport),
	}

	importFormat string
	importFilter []string

	importCmd = &cobra.Command{
		Use:   "import [file...]",
		Short: "Import tasks from CSV, a Taskwarrior export or Org-mode files",
		Long: `Import runs every item through the normal analysis and creation path.
Explicit values in the source override the suggestions. With
--format taskwarrior and no file, "task export" is run directly.`,
		RunE: withApp(runImport),
	}
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON instead of a summary")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to this file instead of stdout")
	importCmd.Flags().StringVarP(&importFormat, "format", "f", formatCSV, "input format: csv, taskwarrior or org")
	importCmd.Flags().StringSliceVar(&importFilter, "filter", nil, "taskwarrior filter used when running task export")
}

func runStats(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	report, err := a.svc.Analytics(ctx)
	if err != nil {
		return err
	}
	if statsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	renderReport(cmd.OutOrStdout(), report)
	return nil
}

func runExport(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	tasks, err := a.svc.List(ctx, store.Filter{})
	if err != nil {
		return err
	}
	if exportOut == "" {
		return csvio.Write(cmd.OutOrStdout(), tasks)
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := csvio.Write(f, tasks); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tasks to %s\n", len(tasks), exportOut)
	return nil
}

func runImport(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	items, failures, err := readImportItems(ctx, importFormat, args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	rep := a.svc.Import(ctx, items)
	rep.Failed = append(failures, rep.Failed...)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d of %d items\n", len(rep.Created), len(items)+len(failures))
	printNotes(out, nil, rep.Warnings)
	for _, f := range rep.Failed {
		fmt.Fprintln(out, errorStyle.Render("failed: "+f.Error()))
	}
	return nil
}

// readImportItems parses args in format. No args means stdin, except for
// taskwarrior where the task binary is queried.
func readImportItems(ctx context.Context, format string, paths []string, stdin io.Reader) ([]tracker.ImportItem, []tracker.ImportFailure, error) {
	switch format {
	case formatOrg:
		if len(paths) == 0 {
			items, err := orgmode.Parse(stdin, "stdin")
			return items, nil, err
		}
		items, err := orgmode.ParseFiles(paths)
		return items, nil, err

	case formatTaskwarrior:
		var tasks []taskwarrior.Task
		if len(paths) == 0 {
			var err error
			if tasks, err = taskwarrior.NewClient().Export(ctx, importFilter); err != nil {
				return nil, nil, err
			}
		}
		for _, p := range paths {
			parsed, err := parseFile(p, taskwarrior.ParseTasks)
			if err != nil {
				return nil, nil, err
			}
			tasks = append(tasks, parsed...)
		}
		return taskwarrior.ImportItems(tasks, time.Local), nil, nil

	case formatCSV:
		if len(paths) == 0 {
			return csvio.Read(stdin)
		}
		var (
			items    []tracker.ImportItem
			failures []tracker.ImportFailure
		)
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				return nil, nil, err
			}
			it, fl, err := csvio.Read(f)
			f.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", p, err)
			}
			name := filepath.Base(p)
			for i := range it {
				it[i].Source = name + " " + it[i].Source
			}
			for i := range fl {
				fl[i].Source = name + " " + fl[i].Source
			}
			items = append(items, it...)
			failures = append(failures, fl...)
		}
		return items, failures, nil
	}
	return nil, nil, fmt.Errorf("unknown import format %q (want %s, %s or %s)", format, formatCSV, formatTaskwarrior, formatOrg)
}

func parseFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return parse(f)
}
