// Package index remembers which calendar event mirrors each task, so a sync
// can fetch the event directly instead of searching the calendar.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const File = "events.json"

type Entry struct {
	EventID  string    `json:"event_id"`
	SyncedAt time.Time `json:"synced_at"`
}

// EventIndex is bound to one calendar; entries recorded against another
// calendar are meaningless and are dropped by Bind.
type EventIndex struct {
	path string

	mu       sync.RWMutex
	calendar string
	entries  map[string]Entry
	dirty    bool
	now      func() time.Time
}

type fileFormat struct {
	Calendar string           `json:"calendar"`
	Events   map[string]Entry `json:"events"`
}

// Open loads the index at path, or starts an empty one if the file does not
// exist yet.
func Open(path string) (*EventIndex, error) {
	idx := &EventIndex{path: path, entries: map[string]Entry{}, now: time.Now}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return idx, nil
	case err != nil:
		return nil, err
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse event index %s: %w", path, err)
	}
	idx.calendar = ff.Calendar
	if ff.Events != nil {
		idx.entries = ff.Events
	}
	return idx, nil
}

// OpenDir opens File inside dir.
func OpenDir(dir string) (*EventIndex, error) {
	return Open(filepath.Join(dir, File))
}

func (idx *EventIndex) Path() string { return idx.path }

// Bind ties the index to calendarID, forgetting every mapping made for a
// different calendar.
func (idx *EventIndex) Bind(calendarID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.calendar == calendarID {
		return
	}
	if idx.calendar != "" && len(idx.entries) > 0 {
		idx.entries = map[string]Entry{}
	}
	idx.calendar = calendarID
	idx.dirty = true
}

// Save writes the index if it changed, replacing the file atomically.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	data, err := json.MarshalIndent(fileFormat{Calendar: idx.calendar, Events: idx.entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o700); err != nil {
		return err
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the event id for taskID, or "".
func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries[taskID].EventID
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[taskID] = Entry{EventID: eventID, SyncedAt: idx.now().UTC()}
	idx.dirty = true
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[taskID]; ok {
		delete(idx.entries, taskID)
		idx.dirty = true
	}
}

func (idx *EventIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
