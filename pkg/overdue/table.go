package overdue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

const File = "pending_tasks.json"

// Entry is an open task that has a calendar event and a due date.
type Entry struct {
	TaskID  string `json:"task_id"`
	EventID string `json:"event_id"`
	Summary string `json:"summary"`
	DueDate string `json:"due_date"`
}

// Table tracks open tasks until they go overdue, so the sweep only touches
// events that need the overdue marker.
type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	mu      sync.Mutex
	dirty   bool
}

func Open(path string) (*Table, error) {
	t := &Table{
		Path:    path,
		Entries: make(map[string]Entry),
	}
	if _, err := os.Stat(path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func OpenDir(dir string) (*Table, error) {
	return Open(filepath.Join(dir, File))
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(t); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records an open task with a due date. Completed tasks and tasks
// without a due date are removed instead.
func (t *Table) Track(task *model.Task, eventID, summary string) {
	if task.Status == model.StatusCompleted || task.DueDate == "" {
		t.Remove(task.ID)
		return
	}
	e := Entry{TaskID: task.ID, EventID: eventID, Summary: summary, DueDate: task.DueDate}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.Entries[task.ID]; !ok || old != e {
		t.Entries[task.ID] = e
		t.dirty = true
	}
}

func (t *Table) Remove(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.Entries[taskID]; exists {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep removes and returns the entries due strictly before now's date,
// ordered by due date.
func (t *Table) Sweep(now time.Time) []Entry {
	today := model.FormatDate(now)
	t.mu.Lock()
	defer t.mu.Unlock()
	var swept []Entry
	for id, e := range t.Entries {
		if e.DueDate < today {
			swept = append(swept, e)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	sort.Slice(swept, func(i, j int) bool {
		if swept[i].DueDate != swept[j].DueDate {
			return swept[i].DueDate < swept[j].DueDate
		}
		return swept[i].TaskID < swept[j].TaskID
	})
	return swept
}
