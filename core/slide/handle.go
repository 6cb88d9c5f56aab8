package slide

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// EvictFunc is called exactly once, synchronously, on whichever goroutine's
// Release call drops the handle's reference count to zero. §4.6 requires
// this to happen deterministically ("evicted synchronously on the
// releasing thread") rather than on the GC's schedule, which is why Handle
// manages its own refcount instead of relying on Go's weak package.
type EvictFunc func(h *Handle)

// Handle is a shared-ownership reference to an open slide, mirroring the
// reference implementation's IrisRestfulSlide handle (§4.7). Acquire/Release
// pairs bump and drop an atomic refcount; the Nth Release to observe the
// count reach zero runs the handle's evict hook and closes the underlying
// file exactly once.
type Handle struct {
	path  string
	info  Info
	tiles []tileEntry

	file *os.File
	mu   sync.Mutex // guards ReadAt against concurrent Close races

	refs   atomic.Int64
	evict  EvictFunc
	closed atomic.Bool
}

// Open opens path with codec and returns a Handle with a refcount of 1
// (the caller's own reference). evict, if non-nil, runs when the last
// reference is released.
func Open(path string, codec Codec, evict EvictFunc) (*Handle, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	info, tiles, err := codec.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		path:  path,
		info:  info,
		tiles: tiles,
		file:  f,
		evict: evict,
	}
	h.refs.Store(1)
	return h, nil
}

// Acquire bumps the reference count and returns h, mirroring the reference
// implementation's shared_ptr copy at cache-hit time. It panics if called
// on a handle whose count has already reached zero, since that indicates
// a caller held a reference past its Release — a programming error, not a
// runtime condition.
func (h *Handle) Acquire() *Handle {
	for {
		n := h.refs.Load()
		if n <= 0 {
			panic("slide: Acquire on a released handle")
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// TryAcquire bumps the reference count like Acquire, but reports false
// instead of panicking when the count has already reached zero. It exists
// for callers that found h through a non-owning reference (a
// weak.Pointer, say) and can't assume it is still live: the cache's Get
// uses this to upgrade a cached entry without racing the last Release.
func (h *Handle) TryAcquire() (*Handle, bool) {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return nil, false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h, true
		}
	}
}

// Release drops the reference count. When it reaches zero, Release closes
// the underlying file and runs the evict hook synchronously, on this call.
func (h *Handle) Release() {
	n := h.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("slide: Release called more times than Acquire")
	}

	h.mu.Lock()
	if !h.closed.Swap(true) {
		h.file.Close()
	}
	h.mu.Unlock()

	if h.evict != nil {
		h.evict(h)
	}
}

// RefCount reports the current reference count. Intended for tests and
// metrics; a value observed here is stale the instant it's read in a
// concurrent setting.
func (h *Handle) RefCount() int64 {
	return h.refs.Load()
}

// Path returns the filesystem path this handle was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Info returns the slide's descriptive metadata (§4.7's info()).
func (h *Handle) Info() Info {
	return h.info
}

// LayerCount returns the number of resolution layers.
func (h *Handle) LayerCount() int {
	return len(h.info.Extent.Layers)
}

// TileCount returns the number of tiles at layer, or an error if layer is
// out of range.
func (h *Handle) TileCount(layer int) (int, error) {
	if layer < 0 || layer >= len(h.info.Extent.Layers) {
		return 0, ErrLayerOutOfRange
	}
	l := h.info.Extent.Layers[layer]
	return int(l.XTiles) * int(l.YTiles), nil
}

// tileBaseIndex returns the flat index of tile 0 at layer within h.tiles.
func (h *Handle) tileBaseIndex(layer int) int {
	base := 0
	for _, l := range h.info.Extent.Layers[:layer] {
		base += int(l.XTiles) * int(l.YTiles)
	}
	return base
}

// TileBytes returns the raw (pre-encoded) bytes for the given layer and
// tile index, matching §4.7's tile_bytes(layer, index). It returns
// ErrLayerOutOfRange / ErrTileOutOfRange for invariant violations (§3),
// which callers map onto a 404.
func (h *Handle) TileBytes(layer, index int) ([]byte, error) {
	count, err := h.TileCount(layer)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= count {
		return nil, ErrTileOutOfRange
	}

	entry := h.tiles[h.tileBaseIndex(layer)+index]
	buf := make([]byte, entry.Size)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return nil, fmt.Errorf("slide: %s: handle already closed", h.path)
	}
	if _, err := h.file.ReadAt(buf, entry.Offset); err != nil {
		return nil, fmt.Errorf("slide: %s: read tile: %w", h.path, err)
	}
	copyTile(buf)
	return buf, nil
}

// copyTile is a no-op pass today; it exists as the hook where a wide-SIMD
// pixel transform (format conversion, premultiplied alpha, etc.) would run
// if a future codec needed one. Checking cpu.X86.HasAVX2 here — rather than
// in the hot per-tile path — keeps the feature probe off the request path.
var hasAVX2 = cpu.X86.HasAVX2

var logSIMDPathOnce sync.Once

func copyTile(buf []byte) {
	logSIMDPathOnce.Do(func() {
		log.Printf("[slide] tile copy path ready: avx2=%v", hasAVX2)
	})
}
