/*
Package irisrestful implements a whole-slide-image tile server: a TLS
HTTP/1.1 server that streams individual tiles and descriptive metadata
out of pre-encoded slide files, speaking two URL dialects against the
same slide set — a compact native "IrisRESTful" form and a DICOMweb
WADO-RS-shaped form for clients that expect it.

The server itself does not decode whole-slide-image formats; that is the
job of the Codec boundary in core/slide. What this repository provides
is everything around that boundary: a refcounted, self-evicting slide
handle cache (core/slidecache), the two URL grammars (core/urlgrammar),
request dispatch and JSON serialization (core/restapi), a small HTTP/1.1
codec (core/protocol), and the goroutine-per-connection TLS server loop
that ties it together (core/reactor).

Modules

The server is organized into several packages:

  - app: process lifecycle — wires config, cache, pool, reactor, TLS, metrics
  - config: CLI flags plus optional YAML layering
  - core/slide: the Codec boundary and the refcounted slide handle
  - core/slidecache: directory-keyed cache of open slide handles
  - core/urlgrammar: IrisRESTful / WADO-RS / static-file URL tokenizer
  - core/restapi: request dispatch, sessions, CORS, JSON serialization
  - core/protocol: HTTP/1.1 request parsing and response writing
  - core/reactor: the acceptor pool and per-connection server loop
  - core/pools: the fixed worker pool slide requests run on
  - internal/tlsboot: TLS configuration and self-signed cert generation
  - internal/telemetry: structured logging and Prometheus metrics

Running

	irisd -dir /path/to/slides -cert server.pem -key server.key

With no cert/key given, irisd generates and uses a self-signed
certificate so the server can still be exercised over TLS during
development.
*/
package irisrestful
