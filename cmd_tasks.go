package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

var (
	addOpts struct {
		category   string
		priority   string
		due        string
		hours      float64
		tags       string
		complexity string
		assignee   string
		notes      string
		depends    []string
		dryRun     bool
	}

	addCmd = &cobra.Command{
		Use:   "add [description...]",
		Short: "Analyze a description and create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withApp(runAdd),
	}

	listOpts struct {
		statuses   []string
		categories []string
		priorities []string
		assignee   string
		dueFrom    string
		dueTo      string
		overdue    bool
		json       bool
	}

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks by status, due date and priority",
		Args:    cobra.NoArgs,
		RunE:    withApp(runList),
	}

	showCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its time log",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runShow),
	}

	statusCmd = &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a task's status (Not Started, In Progress, Under Review, Completed)",
		Args:  cobra.MinimumNArgs(2),
		RunE:  withApp(runStatus),
	}

	progressCmd = &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Set a task's progress, clamped to 0-100",
		Args:  cobra.ExactArgs(2),
		RunE:  withApp(runProgress),
	}

	logCmd = &cobra.Command{
		Use:   "log <id> <hours> [description...]",
		Short: "Log hours worked on a task",
		Args:  cobra.MinimumNArgs(2),
		RunE:  withApp(runLog),
	}
)

func init() {
	f := addCmd.Flags()
	f.StringVarP(&addOpts.category, "category", "c", string(model.CategoryOther), "task category")
	f.StringVarP(&addOpts.priority, "priority", "p", "", "priority override")
	f.StringVarP(&addOpts.due, "due", "d", "", "due date override (YYYY-MM-DD)")
	f.Float64Var(&addOpts.hours, "hours", 0, "estimated hours override")
	f.StringVarP(&addOpts.tags, "tags", "t", "", "comma separated tags override")
	f.StringVar(&addOpts.complexity, "complexity", "", "complexity override (Easy, Medium, Hard)")
	f.StringVarP(&addOpts.assignee, "assignee", "a", "", "person responsible")
	f.StringVar(&addOpts.notes, "notes", "", "free-form notes")
	f.StringSliceVar(&addOpts.depends, "depends", nil, "ids of tasks this one depends on")
	f.BoolVar(&addOpts.dryRun, "dry-run", false, "print the analysis without creating the task")

	lf := listCmd.Flags()
	lf.StringSliceVarP(&listOpts.statuses, "status", "s", nil, "only these statuses")
	lf.StringSliceVarP(&listOpts.categories, "category", "c", nil, "only these categories")
	lf.StringSliceVarP(&listOpts.priorities, "priority", "p", nil, "only these priorities")
	lf.StringVarP(&listOpts.assignee, "assignee", "a", "", "only this assignee")
	lf.StringVar(&listOpts.dueFrom, "due-from", "", "earliest due date (YYYY-MM-DD)")
	lf.StringVar(&listOpts.dueTo, "due-to", "", "latest due date (YYYY-MM-DD)")
	lf.BoolVar(&listOpts.overdue, "overdue", false, "only overdue tasks")
	lf.BoolVar(&listOpts.json, "json", false, "print JSON instead of a table")
}

func runAdd(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if addOpts.dryRun {
		res, err := a.svc.Preview(ctx, description, addOpts.category)
		if err != nil {
			return err
		}
		if res.Notice != "" {
			printNotes(out, []string{res.Notice}, nil)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Attributes)
	}

	ov := assembler.Overrides{
		Priority:     addOpts.priority,
		DueDate:      addOpts.due,
		Tags:         addOpts.tags,
		Complexity:   addOpts.complexity,
		Assignee:     addOpts.assignee,
		Notes:        addOpts.notes,
		Dependencies: addOpts.depends,
	}
	if cmd.Flags().Changed("hours") {
		h := addOpts.hours
		ov.EstimatedHours = &h
	}
	res, err := a.svc.CreateTask(ctx, tracker.CreateRequest{
		Description: description,
		Category:    addOpts.category,
		Overrides:   ov,
	})
	if err != nil {
		return err
	}
	printNotes(out, res.Notices, res.Warnings)
	renderTask(out, res.Task, time.Now())
	return nil
}

func runList(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	f := store.Filter{Assignee: listOpts.assignee, DueFrom: listOpts.dueFrom, DueTo: listOpts.dueTo}
	for _, s := range listOpts.statuses {
		st, err := model.ParseStatus(s)
		if err != nil {
			return err
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, c := range listOpts.categories {
		cat, ok := model.ParseCategory(c)
		if !ok {
			return fmt.Errorf("unknown category %q", c)
		}
		f.Categories = append(f.Categories, cat)
	}
	for _, p := range listOpts.priorities {
		pr, ok := model.FourLevel.Parse(p)
		if !ok {
			return fmt.Errorf("unknown priority %q", p)
		}
		f.Priorities = append(f.Priorities, pr)
	}

	tasks, err := listTasks(ctx, a.svc, f, listOpts.overdue)
	if err != nil {
		return err
	}
	if listOpts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	renderTaskList(cmd.OutOrStdout(), tasks, time.Now())
	return nil
}

// listTasks returns the tasks matching f, narrowed to overdue ones when
// overdueOnly is set.
func listTasks(ctx context.Context, svc *tracker.Service, f store.Filter, overdueOnly bool) ([]model.Task, error) {
	if !overdueOnly {
		return svc.List(ctx, f)
	}
	overdue, err := svc.Overdue(ctx)
	if err != nil {
		return nil, err
	}
	tasks := []model.Task{}
	for i := range overdue {
		if f.Match(&overdue[i]) {
			tasks = append(tasks, overdue[i])
		}
	}
	return tasks, nil
}

// resolveID accepts a full id or a unique prefix of one, as shown by list.
func resolveID(ctx context.Context, svc *tracker.Service, ref string) (string, error) {
	if _, err := svc.Get(ctx, ref); err == nil {
		return ref, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	all, err := svc.List(ctx, store.Filter{})
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range all {
		if strings.HasPrefix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	return match, nil
}

func runShow(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	id, err := resolveID(ctx, a.svc, args[0])
	if err != nil {
		return err
	}
	t, err := a.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	renderTask(cmd.OutOrStdout(), t, time.Now())
	return nil
}

func runStatus(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	status, err := model.ParseStatus(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	id, err := resolveID(ctx, a.svc, args[0])
	if err != nil {
		return err
	}
	t, err := a.svc.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", shortID(t.ID), t.Status)
	return nil
}

func runProgress(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
	if err != nil {
		return fmt.Errorf("invalid percent %q", args[1])
	}
	id, err := resolveID(ctx, a.svc, args[0])
	if err != nil {
		return err
	}
	t, err := a.svc.SetProgress(ctx, id, pct)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is %d%% done\n", shortID(t.ID), t.Progress)
	return nil
}

func runLog(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	hours, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %q", tracker.ErrInvalidHours, args[1])
	}
	id, err := resolveID(ctx, a.svc, args[0])
	if err != nil {
		return err
	}
	t, err := a.svc.LogTime(ctx, id, hours, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged %.2fh on %s, %.2fh total\n", hours, shortID(t.ID), t.ActualHours)
	return nil
}
