package slidecache

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/searchktools/iris-restful/core/slide"
)

func writeMinimalSlide(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	var buf bytes.Buffer
	buf.WriteString("IRIS")
	binary.Write(&buf, binary.LittleEndian, uint32(64))
	binary.Write(&buf, binary.LittleEndian, uint32(64))
	buf.WriteByte(byte(slide.FormatR8G8B8A8))
	buf.WriteByte(byte(slide.EncodingJPEG))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(1.0))
	offset := int64(buf.Len() + 16)
	binary.Write(&buf, binary.LittleEndian, offset)
	binary.Write(&buf, binary.LittleEndian, int64(4))
	buf.Write([]byte{1, 2, 3, 4})

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCacheHitAfterFirstOpen(t *testing.T) {
	dir := t.TempDir()
	writeMinimalSlide(t, dir, "a.iris")

	c := New(dir, nil)
	defer c.Close()

	h1, err := c.Get("a.iris")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h1.Release()

	if got := c.StatsSnapshot(); got.Misses != 1 || got.Hits != 0 {
		t.Fatalf("unexpected stats after first open: %+v", got)
	}

	h2, err := c.Get("a.iris")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h2.Release()

	if h1.Path() != h2.Path() {
		t.Fatalf("expected same path, got %s and %s", h1.Path(), h2.Path())
	}
	if got := c.StatsSnapshot(); got.Hits != 1 {
		t.Fatalf("expected 1 hit, got %+v", got)
	}
}

// TestCacheSelfEvictsOnLastRelease exercises §3/§8's core invariant: the
// cache holds no strong reference of its own, so releasing every handle a
// session acquired is what empties the map — not a background sweep.
func TestCacheSelfEvictsOnLastRelease(t *testing.T) {
	dir := t.TempDir()
	writeMinimalSlide(t, dir, "solo.iris")

	c := New(dir, nil)
	defer c.Close()

	h, err := c.Get("solo.iris")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry while handle is held, got %d", c.Len())
	}

	h.Release()

	if c.Len() != 0 {
		t.Fatalf("expected cache empty after last release, got %d entries", c.Len())
	}
}

func TestCacheMissingSlide(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	defer c.Close()

	if _, err := c.Get("nope.iris"); err == nil {
		t.Fatal("expected error for missing slide")
	}
}

// TestCacheConcurrentOpensNotCoalesced exercises the documented property
// that racing misses on the same slide both succeed independently rather
// than one blocking on the other.
func TestCacheConcurrentOpensNotCoalesced(t *testing.T) {
	dir := t.TempDir()
	writeMinimalSlide(t, dir, "race.iris")
	c := New(dir, nil)
	defer c.Close()

	const n = 8
	handles := make([]*slide.Handle, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			handles[i], errs[i] = c.Get("race.iris")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Get[%d]: %v", i, err)
		}
	}
	for _, h := range handles {
		h.Release()
	}

	if c.Len() != 0 {
		t.Fatalf("expected cache empty after all releases, got %d entries", c.Len())
	}
}

// TestCacheEvictsOnFileRemoval exercises proactive invalidation: a session
// still holds its handle (so self-eviction hasn't already emptied the map)
// when the underlying file is removed, and the watch drops the now-stale
// map entry without touching the session's still-live handle.
func TestCacheEvictsOnFileRemoval(t *testing.T) {
	dir := t.TempDir()
	writeMinimalSlide(t, dir, "temp.iris")
	c := New(dir, nil)
	defer c.Close()

	h, err := c.Get("temp.iris")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h.Release()

	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}

	if c.watcher == nil {
		t.Skip("fsnotify unavailable in this environment")
	}

	os.Remove(filepath.Join(dir, "temp.iris"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected entry to be evicted after file removal, got %d entries", c.Len())
}
