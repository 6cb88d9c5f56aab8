package sendfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileCacheReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	fc := NewFileCache(4)
	defer fc.Close()

	data, err := fc.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Fatalf("unexpected content: %q", data)
	}

	// Second read hits the cached handle, not a fresh open.
	data2, err := fc.ReadFile(path)
	if err != nil {
		t.Fatalf("second ReadFile: %v", err)
	}
	if string(data2) != "<html></html>" {
		t.Fatalf("unexpected content on cached read: %q", data2)
	}
}

func TestFileCacheEvictsOverCapacity(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache(2)
	defer fc.Close()

	var paths []string
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, string(rune('a'+i)))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
		if _, err := fc.ReadFile(p); err != nil {
			t.Fatalf("ReadFile %s: %v", p, err)
		}
	}

	if len(fc.cache) > 2 {
		t.Fatalf("expected cache capped at 2 entries, got %d", len(fc.cache))
	}
	// The oldest (paths[0]) should have been evicted; reading it again
	// must still succeed by reopening.
	if _, err := fc.ReadFile(paths[0]); err != nil {
		t.Fatalf("re-read after eviction: %v", err)
	}
}
