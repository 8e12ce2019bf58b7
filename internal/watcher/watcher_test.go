package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) onFile(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, []string{".xlsx"}, false, rec.onFile, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	fPath := filepath.Join(dir, "meters.xlsx")
	for i := 0; i < 3; i++ {
		if err := writeFile(fPath, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "~$meters.xlsx"), "lock"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) >= 1 })
	time.Sleep(150 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 || got[0] != fPath {
		t.Errorf("expected one settled callback for meters.xlsx, got %v", got)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.xlsx", []string{".xlsx"}, true},
		{"/a/b.XLSX", []string{".xlsx"}, true},
		{"/a/b.ods", []string{"ods"}, true},
		{"/a/b.md", []string{".xlsx"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.xlsx", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	outbox := filepath.Join(dir, "out")
	if err := mkdirAll(outbox); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"a.xlsx":                 "x",
		"ignore.xyz":             "x",
		".hidden.xlsx":           "x",
		"out/a_transformed.xlsx": "x",
	} {
		if err := writeFile(filepath.Join(dir, name), content); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	w := NewWatcher(dir, []string{".xlsx"}, true, rec.onFile, WithExclude(outbox))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	got := rec.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.xlsx") {
		t.Errorf("expected only a.xlsx, got %v", got)
	}
}

func TestWatcher_Start_createsMissingInbox(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")

	w := NewWatcher(root, []string{".xlsx"}, false, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("inbox should exist after Start: %v", err)
	}
	if w.Inbox() != root {
		t.Errorf("Inbox() = %q", w.Inbox())
	}
}

func TestWatcher_HandleNewDirectory_recursive(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, []string{".xlsx", ".csv"}, true, rec.onFile, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.csv"), "Short name"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		for _, p := range rec.snapshot() {
			if strings.HasSuffix(p, "deep.csv") {
				return true
			}
		}
		return false
	})
	found := false
	for _, p := range rec.snapshot() {
		if strings.HasSuffix(p, "deep.csv") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected deep.csv to be reported, got %v", rec.snapshot())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, false, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
