package slide

import (
	"encoding/binary"
	"io"
	"math"
)

// binaryReader is a tiny little-endian cursor over an io.Reader, used by
// fileCodec to decode the container header without pulling in a generic
// serialization library for what is, at this layer, a handful of fixed
// fields.
type binaryReader struct {
	r   io.Reader
	buf [8]byte
}

func newBinaryReader(r io.Reader) *binaryReader {
	return &binaryReader{r: r}
}

func (b *binaryReader) read(p []byte) error {
	_, err := io.ReadFull(b.r, p)
	return err
}

func (b *binaryReader) uint8() (uint8, error) {
	if err := b.read(b.buf[:1]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func (b *binaryReader) uint16() (uint16, error) {
	if err := b.read(b.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.buf[:2]), nil
}

func (b *binaryReader) uint32() (uint32, error) {
	if err := b.read(b.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.buf[:4]), nil
}

func (b *binaryReader) int64() (int64, error) {
	if err := b.read(b.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b.buf[:8])), nil
}

func (b *binaryReader) float32() (float32, error) {
	v, err := b.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
