// Package restapi implements §4.5/§4.8: turning a parsed request-target
// plus HTTP method into a response, dispatching between the IrisRESTful
// and DICOMweb WADO-RS dialects and the optional static file server, and
// serializing the result. It is grounded on IrisRestfulServer.cpp's
// on_get_request (protocol/type switch, sticky per-session slide lookup,
// malformed/not-found fallthrough) and IrisRestfulGetSerializer.cpp (the
// metadata JSON shape), adapted from reinterpret_cast'd request structs
// and goto-based error handling into a plain Go switch.
package restapi

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/searchktools/iris-restful/core/sendfile"
	"github.com/searchktools/iris-restful/core/slide"
	"github.com/searchktools/iris-restful/core/slidecache"
	"github.com/searchktools/iris-restful/core/urlgrammar"
)

// maxCachedDocFiles bounds the static file handle cache (§4.8); the doc
// root is meant for a small set of viewer assets (index.html, a JS
// bundle, a few icons), not an arbitrary file server.
const maxCachedDocFiles = 256

// Response is protocol-agnostic: the reactor that owns the connection is
// responsible for writing Status/Headers/Body onto the wire, matching how
// StandardContext.String/JSON/Bytes in the teacher's core/http package
// take a fully-formed payload and do the actual socket write themselves.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

func newResponse(status int) Response {
	return Response{Status: status, Headers: map[string]string{}}
}

func jsonResponse(status int, body []byte) Response {
	r := newResponse(status)
	r.Headers["Content-Type"] = "application/json"
	r.Body = body
	return r
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, marshalError(msg))
}

// Dispatcher wires a slide cache and an optional static document root into
// request handling, matching the fields captured by the reference server's
// constructor (_root / _doc_root / _cors).
type Dispatcher struct {
	cache      *slidecache.Cache
	docRoot    string
	corsOrigin string
	docFiles   *sendfile.FileCache
}

// NewDispatcher builds a Dispatcher. cors is the operator-configured
// Access-Control-Allow-Origin value (empty means "apply the default
// formula"); docRoot is the optional static file server root (empty means
// "file serving is disabled").
func NewDispatcher(cache *slidecache.Cache, docRoot, cors string) *Dispatcher {
	return &Dispatcher{
		cache:      cache,
		docRoot:    docRoot,
		corsOrigin: resolveCORSOrigin(cors, docRoot),
		docFiles:   sendfile.NewFileCache(maxCachedDocFiles),
	}
}

// Close releases the dispatcher's cached static file handles.
func (d *Dispatcher) Close() {
	d.docFiles.Close()
}

// Handle processes one request. target is the HTTP request-target (the
// path plus optional query, though the grammar here never looks at a
// query string); session carries per-connection sticky-slide state and may
// be nil for a dispatcher used outside a connection (e.g. tests).
func (d *Dispatcher) Handle(method, target string, session *Session) Response {
	switch method {
	case "OPTIONS":
		r := newResponse(204)
		applyCORSHeaders(r.Headers, d.corsOrigin)
		return r
	case "GET", "HEAD":
		// fall through to dispatch below
	default:
		r := errorResponse(405, "method not allowed")
		r.Headers["Allow"] = "GET, HEAD"
		applyCORSHeaders(r.Headers, d.corsOrigin)
		return r
	}

	req := urlgrammar.Parse(target)

	var resp Response
	switch req.Protocol {
	case urlgrammar.ProtocolFile:
		resp = d.handleFile(req)
	case urlgrammar.ProtocolIris, urlgrammar.ProtocolDICOM:
		resp = d.handleSlideRequest(req, session)
	default:
		resp = errorResponse(400, req.Err)
	}

	applyCORSHeaders(resp.Headers, d.corsOrigin)
	if method == "HEAD" {
		resp.Body = nil
	}
	return resp
}

func (d *Dispatcher) handleFile(req urlgrammar.Request) Response {
	if d.docRoot == "" {
		return errorResponse(404, "this Iris RESTful implementation is not configured to run as a web server / file server")
	}

	full := filepath.Join(d.docRoot, filepath.FromSlash(req.Path))
	data, err := d.docFiles.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorResponse(404, "file not found: "+req.Path)
		}
		return errorResponse(500, "error reading file: "+err.Error())
	}

	r := newResponse(200)
	r.Headers["Content-Type"] = req.MIME
	r.Body = data
	return r
}

func (d *Dispatcher) handleSlideRequest(req urlgrammar.Request, session *Session) Response {
	switch req.Command {
	case urlgrammar.CommandTile, urlgrammar.CommandMetadata:
		// continue below
	default:
		return errorResponse(400, req.Err)
	}

	id, ok := sanitizeID(req.ID)
	if !ok {
		return errorResponse(400, "illegal slide identifier")
	}

	handle, err := d.acquireSlide(id, session)
	if err != nil {
		return errorResponse(404, "slide file with identifier '"+req.ID+"' not found")
	}
	if session == nil {
		defer handle.Release()
	}

	switch req.Command {
	case urlgrammar.CommandTile:
		data, err := handle.TileBytes(req.Layer, req.Tile)
		if err != nil {
			return errorResponse(404, tileErrorMessage(err))
		}
		r := newResponse(200)
		r.Headers["Content-Type"] = handle.Info().Encoding.MIME()
		r.Body = data
		return r

	case urlgrammar.CommandMetadata:
		body, err := marshalMetadata(handle.Info())
		if err != nil {
			return errorResponse(500, "failed to serialize slide metadata")
		}
		return jsonResponse(200, body)
	}

	return errorResponse(400, "undefined GET request error")
}

func tileErrorMessage(err error) string {
	switch {
	case errors.Is(err, slide.ErrLayerOutOfRange):
		return "requested layer is out of bounds for this slide"
	case errors.Is(err, slide.ErrTileOutOfRange):
		return "requested tile is out of bounds for this layer"
	default:
		return "no valid slide file found"
	}
}

// acquireSlide resolves req.ID against the session's sticky handle when a
// session is present, falling back to a direct (unowned-by-anyone-after-
// the-call) cache lookup otherwise. Callers that pass a nil session are
// responsible for releasing the returned handle.
func (d *Dispatcher) acquireSlide(id string, session *Session) (*slide.Handle, error) {
	if session != nil {
		return session.slideFor(id, d.cache)
	}
	return d.cache.Get(id + ".iris")
}

// sanitizeID rejects slide identifiers containing path-traversal
// sequences before they reach the cache's filepath.Join, since the
// urlgrammar package already strips the surrounding URL structure but
// doesn't otherwise constrain what counts as an "id" token.
func sanitizeID(id string) (string, bool) {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return "", false
	}
	return id, true
}
