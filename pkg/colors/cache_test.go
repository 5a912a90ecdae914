package colors

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) (*ColorCache, *time.Time) {
	t.Helper()
	c, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestColorIDStablePerAssignee(t *testing.T) {
	c, _ := newTestCache(t)
	if got := c.ColorID(""); got != Unassigned {
		t.Errorf("expected unassigned color, got %s", got)
	}
	a := c.ColorID("ana")
	b := c.ColorID("bo")
	if a == b {
		t.Errorf("expected distinct colors, both got %s", a)
	}
	if again := c.ColorID("ana"); again != a {
		t.Errorf("expected stable color %s, got %s", a, again)
	}
}

func TestColorIDEvictsLeastRecentlyUsed(t *testing.T) {
	c, now := newTestCache(t)
	for i := 0; i < paletteSize; i++ {
		*now = now.Add(time.Minute)
		c.ColorID(fmt.Sprintf("user%d", i))
	}
	// Touch user0 so user1 becomes the oldest.
	*now = now.Add(time.Minute)
	c.ColorID("user0")
	victim := c.Assignees["user1"].ColorID

	*now = now.Add(time.Minute)
	if got := c.ColorID("newcomer"); got != victim {
		t.Errorf("expected recycled color %s, got %s", victim, got)
	}
	if _, ok := c.Assignees["user1"]; ok {
		t.Error("expected user1 to be evicted")
	}
}

func TestColorCachePersists(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	color := c.ColorID("ana")
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reopened, err := Open(filepath.Join(dir, File))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := reopened.ColorID("ana"); got != color {
		t.Errorf("expected %s after reload, got %s", color, got)
	}
}
