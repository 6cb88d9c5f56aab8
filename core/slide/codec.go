package slide

import (
	"fmt"
	"os"
	"sync"
)

// Codec is the narrow boundary between this package and the actual Iris
// slide file format. Parsing the on-disk container (DEFLATE-compressed
// metadata block, tile table, tile blobs) is explicitly out of scope for
// this core per §1 ("what it means to decode a tile ... is not part of
// this spec"); Codec is the seam a real decoder plugs into. Open returns
// an error for anything that is not a well-formed slide file so the cache
// can distinguish "missing" from "corrupt" per §4.6's error text.
type Codec interface {
	// Open validates path and returns the slide's descriptive metadata and
	// its tile table. It must not retain path beyond the call.
	Open(path string) (Info, []tileEntry, error)
}

// fileCodec is the only Codec implementation this core ships: a minimal
// reader for a self-describing container good enough to exercise every
// operation in §4 end-to-end (info, tile lookup, out-of-range errors)
// without depending on the real Iris binary format, which is maintained
// outside this repo. Layout, little-endian:
//
//	magic      [4]byte  "IRIS"
//	width      uint32
//	height     uint32
//	format     uint8
//	encoding   uint8
//	layerCount uint16
//	layers: for each layer, xTiles uint32, yTiles uint32, scale float32
//	tiles:  for each layer in order, xTiles*yTiles entries of
//	        (offset int64, size int64) into the trailing blob region
//	blob: concatenated tile bytes, addressed by the offsets above
type fileCodec struct {
	mu    sync.Mutex
	cache map[string]struct{} // placeholder for future format-sniffing cache
}

// DefaultCodec is the Codec used by Open when none is supplied.
var DefaultCodec Codec = &fileCodec{cache: map[string]struct{}{}}

func (c *fileCodec) Open(path string) (Info, []tileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, err
	}
	defer f.Close()

	r := newBinaryReader(f)

	var magic [4]byte
	if err := r.read(magic[:]); err != nil {
		return Info{}, nil, fmt.Errorf("slide: truncated header: %w", err)
	}
	if string(magic[:]) != "IRIS" {
		return Info{}, nil, fmt.Errorf("slide: %s: not an Iris container", path)
	}

	width, err := r.uint32()
	if err != nil {
		return Info{}, nil, err
	}
	height, err := r.uint32()
	if err != nil {
		return Info{}, nil, err
	}
	format, err := r.uint8()
	if err != nil {
		return Info{}, nil, err
	}
	encoding, err := r.uint8()
	if err != nil {
		return Info{}, nil, err
	}
	layerCount, err := r.uint16()
	if err != nil {
		return Info{}, nil, err
	}

	layers := make([]LayerExtent, layerCount)
	for i := range layers {
		xt, err := r.uint32()
		if err != nil {
			return Info{}, nil, err
		}
		yt, err := r.uint32()
		if err != nil {
			return Info{}, nil, err
		}
		scale, err := r.float32()
		if err != nil {
			return Info{}, nil, err
		}
		layers[i] = LayerExtent{XTiles: xt, YTiles: yt, Scale: scale}
	}

	var tiles []tileEntry
	for _, l := range layers {
		count := int(l.XTiles) * int(l.YTiles)
		for i := 0; i < count; i++ {
			off, err := r.int64()
			if err != nil {
				return Info{}, nil, err
			}
			size, err := r.int64()
			if err != nil {
				return Info{}, nil, err
			}
			tiles = append(tiles, tileEntry{Offset: off, Size: size})
		}
	}

	info := Info{
		Format:   PixelFormat(format),
		Encoding: Encoding(encoding),
		Extent: Extent{
			Width:  width,
			Height: height,
			Layers: layers,
		},
	}
	return info, tiles, nil
}
