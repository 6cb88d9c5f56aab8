// Package slide implements the slide handle (§4.7) and the codec boundary
// it wraps (§6.2). The codec itself — parsing the Iris container's binary
// layout — is explicitly out of scope for this core (§1); this package
// plays the role of "open file -> validated slide object exposing
// layer_count, tile_count(layer), and tile_bytes(layer, tile)" and
// implements everything the core is responsible for around that boundary:
// the shared-ownership handle, its tile table lookups, and the
// self-eviction hook contract.
package slide

import "fmt"

// PixelFormat mirrors the codec's raw pixel layout, serialized into
// metadata responses as one of the FORMAT_* strings in §4.5.
type PixelFormat int

const (
	FormatUndefined PixelFormat = iota
	FormatB8G8R8
	FormatR8G8B8
	FormatB8G8R8A8
	FormatR8G8B8A8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatB8G8R8:
		return "FORMAT_B8G8R8"
	case FormatR8G8B8:
		return "FORMAT_R8G8B8"
	case FormatB8G8R8A8:
		return "FORMAT_B8G8R8A8"
	case FormatR8G8B8A8:
		return "FORMAT_R8G8B8A8"
	default:
		return "FORMAT_UNDEFINED"
	}
}

// Encoding mirrors the codec's tile compression, serialized as one of the
// ENCODING_* strings in §4.5.
type Encoding int

const (
	EncodingUndefined Encoding = iota
	EncodingIris
	EncodingJPEG
	EncodingAVIF
)

func (e Encoding) String() string {
	switch e {
	case EncodingIris:
		return "image/iris"
	case EncodingJPEG:
		return "image/jpeg"
	case EncodingAVIF:
		return "image/avif"
	default:
		return "ENCODING_UNDEFINED"
	}
}

// MIME returns the HTTP Content-Type used when serving a tile encoded this
// way. Tiles are pre-encoded in the slide file and are streamed as-is
// (§4.5): the server never transcodes.
func (e Encoding) MIME() string {
	switch e {
	case EncodingJPEG:
		return "image/jpeg"
	case EncodingAVIF:
		return "image/avif"
	default:
		return "image/jpeg"
	}
}

// LayerExtent describes one resolution layer's tile grid, per §4.5's
// extent.layers entries.
type LayerExtent struct {
	XTiles uint32
	YTiles uint32
	Scale  float32
}

// Extent is the slide's overall pixel dimensions plus its per-layer tile
// grids.
type Extent struct {
	Width  uint32
	Height uint32
	Layers []LayerExtent
}

// Info is the immutable descriptive metadata returned by info() in §4.7,
// and what gets serialized into GET .../metadata responses (§4.5).
type Info struct {
	Format   PixelFormat
	Encoding Encoding
	Extent   Extent

	// MetadataBlob is the codec's free-form metadata map. It is carried
	// through for forward compatibility (§9's Open Question) but the
	// wire JSON serializer never emits it.
	MetadataBlob map[string]string
}

// tileEntry is one (layer, index) -> (offset, size) record in the tile
// table (§6.2's abstract_file_structure).
type tileEntry struct {
	Offset int64
	Size   int64
}

// ErrLayerOutOfRange and ErrTileOutOfRange surface the §3 invariant
// violations ("layer < slide.layer_count", "tile < slide.tile_count(layer)")
// as typed errors so callers can map them to a 404 rather than a 400
// (§7: OutOfRange is handled in the slide handle and observed as 404 text,
// not a parse error).
var (
	ErrLayerOutOfRange = fmt.Errorf("layer out of bounds")
	ErrTileOutOfRange  = fmt.Errorf("tile out of bounds")
)
