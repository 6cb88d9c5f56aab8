package protocol

import (
	"io"
	"strconv"

	"github.com/searchktools/iris-restful/core/pools"
)

// statusText mirrors the small fixed table the teacher's context.go keeps
// for the codes it actually emits, rather than pulling in net/http's full
// table for a handful of responses.
var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	503: "Service Unavailable",
	520: "Undefined Error",
}

func textFor(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Unknown"
}

// ResponseHeaders carries the fields WriteResponse stamps on every
// response, matching §4.3's "stamps server headers (Server, CORS,
// Content-Type, keep-alive, HTTP version)".
type ResponseHeaders struct {
	Proto      string // echoed back from the request
	KeepAlive  bool
	Extra      map[string]string // Content-Type, Allow, Access-Control-*, ...
}

// WriteResponse writes a full HTTP response line, headers, and body to w.
// The header block is built into a pooled buffer (core/pools.BufferPool)
// rather than a fresh allocation per call, since a busy connection writes
// one of these per request.
func WriteResponse(w io.Writer, code int, headers ResponseHeaders, body []byte) error {
	proto := headers.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}

	bufp := pools.AcquireBuffer(256 + len(headers.Extra)*32)
	defer pools.ReleaseBuffer(bufp)
	buf := (*bufp)[:0]

	buf = append(buf, proto...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, textFor(code)...)
	buf = append(buf, "\r\nServer: Iris RESTful Server\r\n"...)

	if headers.KeepAlive {
		buf = append(buf, "Connection: keep-alive\r\n"...)
	} else {
		buf = append(buf, "Connection: close\r\n"...)
	}

	for k, v := range headers.Extra {
		buf = append(buf, k...)
		buf = append(buf, ": "...)
		buf = append(buf, v...)
		buf = append(buf, "\r\n"...)
	}

	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\n\r\n"...)
	*bufp = buf

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}
