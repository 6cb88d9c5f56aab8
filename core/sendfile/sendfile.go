// Package sendfile caches open file descriptors for the optional static
// document root (§4.8's file-serving fallback), adapted from the
// teacher's zero-copy sendfile helper. The raw syscall.Sendfile path it
// used to expose does not survive adaptation: every connection in this
// server is a crypto/tls.Conn, and TLS record framing has no equivalent
// of a kernel-level file-to-socket copy — the bytes have to pass through
// userspace to be encrypted. What is kept is the other half of that
// file: an LRU cache of open *os.File handles, so a doc root served to
// many keep-alive connections doesn't re-open the same handful of files
// on every request.
package sendfile

import (
	"container/list"
	"os"
	"sync"
)

// FileCache caches open file descriptors using LRU eviction.
type FileCache struct {
	mu       sync.RWMutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
}

type cacheEntry struct {
	file    *os.File
	element *list.Element
}

// NewFileCache creates a file cache holding at most maxFiles open handles.
func NewFileCache(maxFiles int) *FileCache {
	return &FileCache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
	}
}

// ReadFile returns the current contents of path, opening (and caching)
// the file handle on a miss. Content is read with ReadAt against the
// file's current size, so concurrent callers sharing one cached handle
// never race on a read offset.
func (fc *FileCache) ReadFile(path string) ([]byte, error) {
	f, err := fc.open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, info.Size())
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fc *FileCache) open(path string) (*os.File, error) {
	fc.mu.RLock()
	if entry, ok := fc.cache[path]; ok {
		fc.mu.RUnlock()
		fc.mu.Lock()
		fc.lruList.MoveToFront(entry.element)
		fc.mu.Unlock()
		return entry.file, nil
	}
	fc.mu.RUnlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if entry, ok := fc.cache[path]; ok {
		// Lost the race to another opener; use theirs, drop ours.
		file.Close()
		fc.lruList.MoveToFront(entry.element)
		return entry.file, nil
	}

	element := fc.lruList.PushFront(path)
	fc.cache[path] = &cacheEntry{file: file, element: element}

	if fc.lruList.Len() > fc.maxFiles {
		oldest := fc.lruList.Back()
		if oldest != nil {
			oldPath := oldest.Value.(string)
			if oldEntry, ok := fc.cache[oldPath]; ok {
				oldEntry.file.Close()
				delete(fc.cache, oldPath)
			}
			fc.lruList.Remove(oldest)
		}
	}

	return file, nil
}

// Close closes every cached file handle.
func (fc *FileCache) Close() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, entry := range fc.cache {
		entry.file.Close()
	}
	fc.cache = make(map[string]*cacheEntry)
	fc.lruList.Init()
}
