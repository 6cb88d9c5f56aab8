package restapi

import (
	"encoding/json"

	"github.com/searchktools/iris-restful/core/slide"
)

// Wire shapes for GET .../metadata responses (§4.5). Field presence
// mirrors SERIALIZE_SLIDE_METADATA_JSON: format/encoding are only emitted
// when the codec actually reported one (the original guards on
// "if (info.format)" / "if (info.encoding)"), which omitempty reproduces
// here since both enums' zero value is their *_UNDEFINED member.
type layerExtentJSON struct {
	XTiles uint32  `json:"x_tiles"`
	YTiles uint32  `json:"y_tiles"`
	Scale  float32 `json:"scale"`
}

type extentJSON struct {
	Width  uint32            `json:"width"`
	Height uint32            `json:"height"`
	Layers []layerExtentJSON `json:"layers"`
}

type metadataJSON struct {
	Type     string     `json:"type"`
	Format   string     `json:"format,omitempty"`
	Encoding string     `json:"encoding,omitempty"`
	Extent   extentJSON `json:"extent"`
}

// marshalMetadata renders a slide's descriptive Info as the
// "slide_metadata" JSON document. metadata_blob is deliberately never
// serialized (§9's forward-compat note): it exists on slide.Info for
// internal use only.
func marshalMetadata(info slide.Info) ([]byte, error) {
	layers := make([]layerExtentJSON, len(info.Extent.Layers))
	for i, l := range info.Extent.Layers {
		layers[i] = layerExtentJSON{XTiles: l.XTiles, YTiles: l.YTiles, Scale: l.Scale}
	}
	doc := metadataJSON{
		Type:   "slide_metadata",
		Extent: extentJSON{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Layers: layers,
		},
	}
	if info.Format != slide.FormatUndefined {
		doc.Format = info.Format.String()
	}
	if info.Encoding != slide.EncodingUndefined {
		doc.Encoding = info.Encoding.String()
	}
	return json.Marshal(doc)
}

// errorJSON is the body shape for malformed-request and not-found
// responses (§4.5's error text responses). The original server returns a
// bare string for these; wrapping it in a tiny JSON envelope here keeps
// every error response Content-Type: application/json, which plays better with
// the DICOMweb dialect's clients than a bare text/plain body would.
type errorJSON struct {
	Error string `json:"error"`
}

func marshalError(msg string) []byte {
	data, err := json.Marshal(errorJSON{Error: msg})
	if err != nil {
		// msg is always a plain ASCII string literal in this package; this
		// path is unreachable in practice.
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
