package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/csvio"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/orgmode"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/taskwarrior"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

const maxImportBytes = 8 << 20

type AnalyzeRequest struct {
	Description string `json:"description" binding:"required"`
	Category    string `json:"category" binding:"omitempty,category"`
}

// CreateTaskRequest binds a creation body. Priority, estimated hours and
// complexity are not validated here: an invalid value is discarded by the
// assembler and the suggestion stands.
type CreateTaskRequest struct {
	Description    string   `json:"description" binding:"required"`
	Category       string   `json:"category" binding:"omitempty,category"`
	Priority       string   `json:"priority"`
	DueDate        string   `json:"due_date" binding:"omitempty,isodate"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Tags           []string `json:"tags"`
	Complexity     string   `json:"complexity"`
	Assignee       string   `json:"assignee"`
	Notes          string   `json:"notes"`
	Dependencies   []string `json:"dependencies" binding:"omitempty,dive,required"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required,status"`
}

type ProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

type TimeRequest struct {
	Hours       float64 `json:"hours" binding:"required,gt=0"`
	Description string  `json:"description"`
}

// TaskView is a task with its read-time overdue flag.
type TaskView struct {
	*model.Task
	Overdue bool `json:"overdue"`
}

type CreateTaskResponse struct {
	Task       TaskView `json:"task"`
	FromOracle bool     `json:"from_oracle"`
	Notices    []string `json:"notices,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Notified   bool     `json:"notified"`
}

type ImportResponse struct {
	Created  int             `json:"created"`
	Failed   []ImportFailure `json:"failed,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

type ImportFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func view(t *model.Task, now time.Time) TaskView {
	return TaskView{Task: t, Overdue: t.IsOverdue(now)}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrEmptyDescription),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, tracker.ErrInvalidHours):
		code = http.StatusBadRequest
	case errors.Is(err, tracker.ErrUnresolvedDependency):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := s.svc.Preview(c.Request.Context(), req.Description, req.Category)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attributes":  a.Attributes,
		"from_oracle": a.FromOracle,
		"notice":      a.Notice,
		"discarded":   a.Discarded,
	})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.svc.CreateTask(c.Request.Context(), tracker.CreateRequest{
		Description: req.Description,
		Category:    req.Category,
		Overrides: assembler.Overrides{
			Priority:       req.Priority,
			DueDate:        req.DueDate,
			EstimatedHours: req.EstimatedHours,
			Tags:           strings.Join(req.Tags, ","),
			Complexity:     req.Complexity,
			Assignee:       req.Assignee,
			Notes:          req.Notes,
			Dependencies:   req.Dependencies,
		},
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateTaskResponse{
		Task:       view(res.Task, time.Now()),
		FromOracle: res.FromOracle,
		Notices:    res.Notices,
		Warnings:   res.Warnings,
		Notified:   res.Notified,
	})
}

// filterFromQuery reads repeated status, category and priority parameters
// plus assignee, due_from and due_to.
func filterFromQuery(c *gin.Context) (store.Filter, error) {
	var f store.Filter
	for _, v := range c.QueryArray("status") {
		st, err := model.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, v := range c.QueryArray("category") {
		cat, ok := model.ParseCategory(v)
		if !ok {
			return f, fmt.Errorf("invalid category %q", v)
		}
		f.Categories = append(f.Categories, cat)
	}
	for _, v := range c.QueryArray("priority") {
		p, ok := model.FourLevel.Parse(v)
		if !ok {
			return f, fmt.Errorf("invalid priority %q", v)
		}
		f.Priorities = append(f.Priorities, p)
	}
	f.Assignee = c.Query("assignee")
	for name, dst := range map[string]*string{"due_from": &f.DueFrom, "due_to": &f.DueTo} {
		if v := c.Query(name); v != "" {
			if _, ok := model.ParseDate(v); !ok {
				return f, fmt.Errorf("invalid %s %q, want YYYY-MM-DD", name, v)
			}
			*dst = v
		}
	}
	return f, nil
}

func (s *Server) handleList(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	tasks, err := s.svc.List(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	onlyOverdue := c.Query("overdue") == "true"
	now := time.Now()
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		v := view(&tasks[i], now)
		if onlyOverdue && !v.Overdue {
			continue
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

func (s *Server) handleGet(c *gin.Context) {
	t, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(t, time.Now()))
}

func (s *Server) handleStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := model.ParseStatus(req.Status)
	if err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.svc.UpdateStatus(c.Request.Context(), c.Param("id"), st)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(t, time.Now()))
}

func (s *Server) handleProgress(c *gin.Context) {
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.svc.SetProgress(c.Request.Context(), c.Param("id"), *req.Progress)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(t, time.Now()))
}

func (s *Server) handleLogTime(c *gin.Context) {
	var req TimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := s.svc.LogTime(c.Request.Context(), c.Param("id"), req.Hours, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(t, time.Now()))
}

func (s *Server) handleAnalytics(c *gin.Context) {
	report, err := s.svc.Analytics(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleExport(c *gin.Context) {
	tasks, err := s.svc.List(c.Request.Context(), store.Filter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="tasks_export.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := csvio.Write(c.Writer, tasks); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

// importBody returns the uploaded file from a multipart form, or the raw
// request body otherwise.
func importBody(c *gin.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		return fh.Open()
	}
	return c.Request.Body, nil
}

func (s *Server) handleImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	body, err := importBody(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	defer body.Close()

	var (
		items    []tracker.ImportItem
		failures []tracker.ImportFailure
	)
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		items, failures, err = csvio.Read(body)
	case "taskwarrior":
		var tasks []taskwarrior.Task
		if tasks, err = taskwarrior.ParseTasks(body); err == nil {
			items = taskwarrior.ImportItems(tasks, time.Local)
		}
	case "org":
		items, err = orgmode.Parse(body, "upload")
	default:
		err = fmt.Errorf("unknown import format %q", format)
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	rep := s.svc.Import(c.Request.Context(), items)
	resp := ImportResponse{Created: len(rep.Created), Warnings: rep.Warnings}
	for _, f := range append(failures, rep.Failed...) {
		resp.Failed = append(resp.Failed, ImportFailure{Source: f.Source, Error: f.Err.Error()})
	}
	c.JSON(http.StatusOK, resp)
}
