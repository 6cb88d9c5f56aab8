package slide

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestSlide writes a minimal valid container with one layer of
// len(tileData)x1 tiles, each holding its tileData entry, and returns its path.
func writeTestSlide(t *testing.T, dir string, tileData [][]byte) string {
	t.Helper()
	path := filepath.Join(dir, "test.iris")

	var buf bytes.Buffer
	buf.WriteString("IRIS")
	binary.Write(&buf, binary.LittleEndian, uint32(512)) // width
	binary.Write(&buf, binary.LittleEndian, uint32(256)) // height
	buf.WriteByte(byte(FormatR8G8B8A8))
	buf.WriteByte(byte(EncodingJPEG))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // layerCount

	xTiles, yTiles := uint32(len(tileData)), uint32(1)
	binary.Write(&buf, binary.LittleEndian, xTiles)
	binary.Write(&buf, binary.LittleEndian, yTiles)
	binary.Write(&buf, binary.LittleEndian, math.Float32bits(1.0))

	headerLen := buf.Len() + len(tileData)*16
	offset := int64(headerLen)
	offsets := make([]int64, len(tileData))
	for i, d := range tileData {
		offsets[i] = offset
		offset += int64(len(d))
	}
	for i, d := range tileData {
		binary.Write(&buf, binary.LittleEndian, offsets[i])
		binary.Write(&buf, binary.LittleEndian, int64(len(d)))
	}
	for _, d := range tileData {
		buf.Write(d)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleTileBytesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeTestSlide(t, dir, [][]byte{
		bytes.Repeat([]byte{0xAA}, 16),
		bytes.Repeat([]byte{0xBB}, 24),
	})

	h, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Release()

	if h.LayerCount() != 1 {
		t.Fatalf("expected 1 layer, got %d", h.LayerCount())
	}
	count, err := h.TileCount(0)
	if err != nil || count != 2 {
		t.Fatalf("TileCount(0) = %d, %v", count, err)
	}

	got0, err := h.TileBytes(0, 0)
	if err != nil {
		t.Fatalf("TileBytes(0,0): %v", err)
	}
	if !bytes.Equal(got0, bytes.Repeat([]byte{0xAA}, 16)) {
		t.Fatalf("tile 0 content mismatch")
	}

	got1, err := h.TileBytes(0, 1)
	if err != nil {
		t.Fatalf("TileBytes(0,1): %v", err)
	}
	if !bytes.Equal(got1, bytes.Repeat([]byte{0xBB}, 24)) {
		t.Fatalf("tile 1 content mismatch")
	}
}

func TestHandleOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestSlide(t, dir, [][]byte{{1}, {2}})

	h, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Release()

	if _, err := h.TileBytes(1, 0); err != ErrLayerOutOfRange {
		t.Fatalf("expected ErrLayerOutOfRange, got %v", err)
	}
	if _, err := h.TileBytes(0, 2); err != ErrTileOutOfRange {
		t.Fatalf("expected ErrTileOutOfRange, got %v", err)
	}
}

// TestHandleSelfEviction verifies the eviction hook runs exactly once,
// synchronously on the releasing goroutine, once the reference count
// reaches zero — the property §4.6/§8 requires of cache eviction.
func TestHandleSelfEviction(t *testing.T) {
	dir := t.TempDir()
	path := writeTestSlide(t, dir, [][]byte{{1}})

	evicted := 0
	h, err := Open(path, nil, func(*Handle) { evicted++ })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h.Acquire()
	h.Acquire()
	if h.RefCount() != 3 {
		t.Fatalf("expected refcount 3, got %d", h.RefCount())
	}

	h.Release()
	if evicted != 0 {
		t.Fatalf("evicted early at refcount %d", h.RefCount())
	}
	h.Release()
	if evicted != 0 {
		t.Fatalf("evicted early at refcount %d", h.RefCount())
	}
	h.Release()
	if evicted != 1 {
		t.Fatalf("expected eviction exactly once, got %d", evicted)
	}
}

func TestHandleReleaseOverflowPanics(t *testing.T) {
	dir := t.TempDir()
	path := writeTestSlide(t, dir, [][]byte{{1}})
	h, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on over-release")
		}
	}()
	h.Release()
	h.Release()
}

func TestCodecRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.iris")
	if err := os.WriteFile(path, []byte("NOPE000000"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil, nil); err == nil {
		t.Fatal("expected error opening malformed container")
	}
}
