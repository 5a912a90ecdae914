package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	File = "assignee_colors.json"

	// Unassigned is the event color for tasks with no assignee.
	Unassigned = "8"

	// Calendar event colors 1 through 11 are handed out to assignees.
	paletteSize = 11
)

type AssigneeState struct {
	ColorID      string    `json:"color_id"`
	LastModified time.Time `json:"last_modified"`
}

// ColorCache gives each assignee a stable calendar color. When every color
// is taken, the least recently used assignee gives up theirs.
type ColorCache struct {
	Path      string
	Assignees map[string]*AssigneeState
	now       func() time.Time
	mu        sync.Mutex
	dirty     bool
}

func Open(path string) (*ColorCache, error) {
	c := &ColorCache{
		Path:      path,
		Assignees: make(map[string]*AssigneeState),
		now:       time.Now,
	}
	if _, err := os.Stat(path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func OpenDir(dir string) (*ColorCache, error) {
	return Open(filepath.Join(dir, File))
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.NewDecoder(f).Decode(&c.Assignees)
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Assignees); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the color for assignee, assigning one on first use.
func (c *ColorCache) ColorID(assignee string) string {
	if assignee == "" {
		return Unassigned
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Assignees[assignee]; ok {
		// Touch for LRU; persisted on the next Save.
		state.LastModified = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(assignee)
}

func (c *ColorCache) assign(assignee string) string {
	used := make(map[string]bool, len(c.Assignees))
	for _, s := range c.Assignees {
		used[s.ColorID] = true
	}

	color := ""
	for i := 1; i <= paletteSize; i++ {
		if id := strconv.Itoa(i); !used[id] {
			color = id
			break
		}
	}
	if color == "" {
		var oldest string
		for name, s := range c.Assignees {
			if oldest == "" || s.LastModified.Before(c.Assignees[oldest].LastModified) {
				oldest = name
			}
		}
		color = c.Assignees[oldest].ColorID
		delete(c.Assignees, oldest)
	}

	c.Assignees[assignee] = &AssigneeState{ColorID: color, LastModified: c.now()}
	c.dirty = true
	return color
}
