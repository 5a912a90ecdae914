package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexPersists(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	if got := idx.Get("task-1"); got != "" {
		t.Errorf("expected empty mapping, got %q", got)
	}

	idx.Set("task-1", "evt-1")
	idx.Set("task-2", "evt-2")
	idx.Remove("task-2")
	if err := idx.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := Open(filepath.Join(dir, File))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := reopened.Get("task-1"); got != "evt-1" {
		t.Errorf("expected evt-1, got %q", got)
	}
	if got := reopened.Get("task-2"); got != "" {
		t.Errorf("expected task-2 removed, got %q", got)
	}
}

func TestSaveSkipsCleanIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", File)
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := idx.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file for a clean index, stat err = %v", err)
	}
}

func TestBindDropsOtherCalendar(t *testing.T) {
	path := filepath.Join(t.TempDir(), File)
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	idx.Bind("work")
	idx.Set("task-1", "evt-1")
	if err := idx.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	same, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	same.Bind("work")
	if got := same.Get("task-1"); got != "evt-1" {
		t.Errorf("expected mapping kept for same calendar, got %q", got)
	}

	same.Bind("personal")
	if same.Len() != 0 {
		t.Errorf("expected mappings dropped after switching calendar, have %d", same.Len())
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), File)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected an error for a corrupt index")
	}
}
