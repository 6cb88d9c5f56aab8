// Package slidecache implements the directory-keyed slide cache of §4.6:
// a map from filesystem path to an open slide.Handle, shared across
// requests so that repeated access to the same slide doesn't re-open and
// re-parse the file. It is grounded on IrisRestfulServer.cpp's get_slide,
// which does a lookup-under-lock, and on a miss opens the file OUTSIDE the
// lock and then re-locks to insert — two callers racing on the same miss
// both open the file; the first to re-lock caches its handle, and the
// second finds that live entry, takes it, and discards its own duplicate
// open. That means this cache deliberately does NOT coalesce duplicate
// concurrent opens (unlike golang.org/x/sync/singleflight, whose whole
// point is to coalesce); it is a plain RWMutex-guarded map plus explicit
// refcounting on each entry, so eviction happens synchronously when the
// last reference is released rather than whenever the GC gets to it.
//
// The cache itself never Acquires a handle (§3): it stores a weak.Pointer
// so the map holds no strong reference, and every strong reference comes
// from an active session. The last session to Release a handle drops its
// refcount to zero and runs the handle's evict hook synchronously, which
// is what empties the map — not this package's own bookkeeping.
package slidecache

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"weak"

	"github.com/fsnotify/fsnotify"

	"github.com/searchktools/iris-restful/core/slide"
)

// MetricsSink receives cache event counts for export (§6.3's
// observability surface). internal/telemetry.Metrics implements this; it
// is optional so tests and standalone uses of this package don't need a
// Prometheus registry.
type MetricsSink interface {
	IncCacheHit()
	IncCacheMiss()
	IncCacheOpenError()
}

// Cache is a directory-scoped, refcounted slide handle cache.
type Cache struct {
	root  string
	codec slide.Codec
	sink  MetricsSink

	mu      sync.RWMutex
	entries map[string]weak.Pointer[slide.Handle]

	watcher *fsnotify.Watcher

	stats struct {
		mu            sync.Mutex
		hits, misses  int64
		opens, errors int64
	}
}

// New creates a cache rooted at dir. It starts an fsnotify watch on dir so
// that a slide file removed or replaced on disk is proactively evicted
// from the map instead of being served stale on the next lookup (§4.6's
// "the cache must not serve a handle to a file that no longer exists").
// Watch failures are logged and otherwise ignored: the cache still works
// correctly without proactive invalidation, just lazily, when Open next
// fails against a removed file.
func New(dir string, codec slide.Codec) *Cache {
	c := &Cache{
		root:    dir,
		codec:   codec,
		entries: make(map[string]weak.Pointer[slide.Handle]),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[slidecache] fsnotify unavailable, proactive invalidation disabled: %v", err)
		return c
	}
	if err := w.Add(dir); err != nil {
		log.Printf("[slidecache] watch %s: %v", dir, err)
		w.Close()
		return c
	}
	c.watcher = w
	go c.watchLoop()
	return c
}

func (c *Cache) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				c.invalidate(ev.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[slidecache] watch error: %v", err)
		}
	}
}

// invalidate drops the map entry for path so the next Get treats it as a
// miss and reopens. It does not touch any session's handle: the cache
// holds no strong reference to release, so a session already holding this
// slide keeps working until it releases on its own.
func (c *Cache) invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Close stops the filesystem watch. It does not release outstanding handles.
func (c *Cache) Close() {
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// resolve joins a slide name (the path segment taken from the URL, already
// validated to contain no ".." or separators by core/restapi's sanitizeID)
// against the cache root.
func (c *Cache) resolve(name string) string {
	return filepath.Join(c.root, filepath.FromSlash(name))
}

// Get returns a live, acquired handle to the slide at name, opening and
// caching it on a miss. The caller must call Release on the returned
// handle exactly once, regardless of whether it hit or missed.
//
// A cache hit upgrades the stored weak.Pointer with TryAcquire rather than
// Acquire, since the handle it points to may be in the middle of its very
// last Release on another goroutine — TryAcquire fails cleanly in that
// race instead of acquiring a handle that's about to close, and the
// lookup falls through to a fresh open exactly as if it had missed.
//
// On a concurrent miss, two callers may both open and decode the file;
// whichever insert wins the map write is what subsequent lookups see. The
// loser acquires the winner's cached handle, releases its own duplicate
// (closing that file), and returns the winner's. This mirrors the
// reference server's behavior and is intentional: the cache optimizes the common case
// (repeat access to an already-open slide) without adding coordination to
// the rare one (the first two requests for a slide arriving together).
func (c *Cache) Get(name string) (*slide.Handle, error) {
	path := c.resolve(name)

	c.mu.RLock()
	wp, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		if h := wp.Value(); h != nil {
			if h2, acquired := h.TryAcquire(); acquired {
				c.recordHit()
				return h2, nil
			}
		}
		// The handle this entry pointed to reached refcount zero (or was
		// already collected) between the lookup and the upgrade; treat
		// exactly like a miss and reopen below.
	}

	c.recordMiss()
	h, err := slide.Open(path, c.codec, func(h *slide.Handle) {
		c.mu.Lock()
		if wp, ok := c.entries[path]; ok && wp.Value() == h {
			delete(c.entries, path)
		}
		c.mu.Unlock()
	})
	if err != nil {
		c.recordError()
		return nil, fmt.Errorf("slidecache: %w", err)
	}
	c.recordOpen()

	c.mu.Lock()
	if existing, ok := c.entries[path]; ok {
		if eh := existing.Value(); eh != nil {
			if winner, acquired := eh.TryAcquire(); acquired {
				// Another opener already won and its handle is still live;
				// return that one and discard our duplicate. Release runs
				// after Unlock because our evict hook takes c.mu.
				c.mu.Unlock()
				h.Release()
				return winner, nil
			}
		}
	}
	// The map holds no strong reference: h's only owner is this caller.
	c.entries[path] = weak.Make(h)
	c.mu.Unlock()

	return h, nil
}

// Stats reports cache hit/miss/open/error counters (§6.3 observability).
type Stats struct {
	Hits, Misses, Opens, Errors int64
}

// SetMetrics attaches a MetricsSink. Call once, before the cache is put to
// use concurrently.
func (c *Cache) SetMetrics(sink MetricsSink) {
	c.sink = sink
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.hits++
	c.stats.mu.Unlock()
	if c.sink != nil {
		c.sink.IncCacheHit()
	}
}
func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.misses++
	c.stats.mu.Unlock()
	if c.sink != nil {
		c.sink.IncCacheMiss()
	}
}
func (c *Cache) recordOpen() { c.stats.mu.Lock(); c.stats.opens++; c.stats.mu.Unlock() }
func (c *Cache) recordError() {
	c.stats.mu.Lock()
	c.stats.errors++
	c.stats.mu.Unlock()
	if c.sink != nil {
		c.sink.IncCacheOpenError()
	}
}

// StatsSnapshot returns a snapshot of the cache's counters.
func (c *Cache) StatsSnapshot() Stats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return Stats{
		Hits:   c.stats.hits,
		Misses: c.stats.misses,
		Opens:  c.stats.opens,
		Errors: c.stats.errors,
	}
}

// Len reports the number of distinct slides currently cached. Intended for
// tests and metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
