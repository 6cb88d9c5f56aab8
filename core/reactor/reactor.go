// Package reactor implements §4.3: a pool of goroutines sharing a single
// listener's Accept() calls (the "reactor pool"), each accepted connection
// handled on its own goroutine acting as the per-session serial executor
// the reference implementation calls a "strand" — all I/O for one
// connection happens on that one goroutine, so no per-session lock is
// needed. It is adapted from the teacher's core/engine.go: same log-banner
// style and idle-timeout discipline, but built on net.Listener/net.Conn
// instead of a raw epoll/kqueue poller, because crypto/tls has no
// non-blocking-syscall entry point to drive from a custom poller — TLS
// record framing needs a blocking (or deadline-bounded) Read/Write loop,
// which is exactly what a goroutine-per-connection model gives for free.
package reactor

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/searchktools/iris-restful/core/pools"
	"github.com/searchktools/iris-restful/core/protocol"
	"github.com/searchktools/iris-restful/core/restapi"
	"github.com/searchktools/iris-restful/internal/telemetry"
)

var logger = telemetry.NewLogger("reactor")

// IdleTimeout is the 30-second per-connection idle deadline from §4.3,
// re-armed at every read and write boundary.
const IdleTimeout = 30 * time.Second

// Reactor accepts connections off a listener (TLS or plain) and serves
// IrisRESTful/WADO-RS requests on each, handing the actual request
// processing to a worker pool so that the accepting/reading goroutines are
// never blocked on slide I/O.
type Reactor struct {
	ln           net.Listener
	pool         *pools.WorkerPool
	dispatcher   *restapi.Dispatcher
	numAcceptors int

	wg sync.WaitGroup
}

// New creates a Reactor. numAcceptors goroutines will share ln.Accept()
// calls; a non-positive value defaults to 4, mirroring the teacher's small
// fixed acceptor count rather than one goroutine per core (accepting is
// not the bottleneck; decoding and serving tiles is).
func New(ln net.Listener, pool *pools.WorkerPool, dispatcher *restapi.Dispatcher, numAcceptors int) *Reactor {
	if numAcceptors <= 0 {
		numAcceptors = 4
	}
	return &Reactor{ln: ln, pool: pool, dispatcher: dispatcher, numAcceptors: numAcceptors}
}

// Serve runs the acceptor pool until the listener is closed. It blocks
// until every acceptor goroutine has returned.
func (r *Reactor) Serve() {
	logger.Banner("🚀", "listening on %s with %d acceptors", r.ln.Addr(), r.numAcceptors)
	r.wg.Add(r.numAcceptors)
	for i := 0; i < r.numAcceptors; i++ {
		go r.acceptLoop()
	}
	r.wg.Wait()
}

func (r *Reactor) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Printf("accept error: %v", err)
			continue
		}
		go r.handleConn(conn)
	}
}

func (r *Reactor) handleConn(conn net.Conn) {
	defer conn.Close()

	session := restapi.NewSession()
	logger.Printf("conn %s opened from %s", session.ConnID(), conn.RemoteAddr())
	defer func() {
		logger.Printf("conn %s closed", session.ConnID())
		session.Close()
	}()

	br := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		req, err := protocol.Read(br)
		if err != nil {
			r.handleReadError(conn, err)
			return
		}

		resp, ok := r.process(req, session)
		if !ok {
			protocol.WriteResponse(conn, 503, protocol.ResponseHeaders{Proto: req.Proto}, []byte("server is draining"))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(IdleTimeout))
		keepAlive := req.KeepAlive()
		if err := protocol.WriteResponse(conn, resp.Status, protocol.ResponseHeaders{
			Proto:     req.Proto,
			KeepAlive: keepAlive,
			Extra:     resp.Headers,
		}, resp.Body); err != nil {
			return
		}
		if !keepAlive {
			return
		}
	}
}

// process hands the parsed request to the worker pool and blocks this
// connection's goroutine on the completion fence. That block is what
// enforces §5's one-outstanding-request-per-session invariant: the next
// read on this connection cannot start until the fence fires, so a
// pipelined second request physically cannot race the first's slide
// lookup.
func (r *Reactor) process(req *protocol.Request, session *restapi.Session) (restapi.Response, bool) {
	var resp restapi.Response
	fence, ok := r.pool.IssueWithFence(func() {
		resp = r.dispatcher.Handle(req.Method, req.Target, session)
	})
	if !ok {
		return restapi.Response{}, false
	}
	fence.Wait()
	return resp, true
}

func (r *Reactor) handleReadError(conn net.Conn, err error) {
	switch {
	case errors.Is(err, protocol.ErrHeaderTooLarge):
		protocol.WriteResponse(conn, 431, protocol.ResponseHeaders{}, []byte("request header fields too large"))
	case errors.Is(err, protocol.ErrBodyTooLarge):
		protocol.WriteResponse(conn, 413, protocol.ResponseHeaders{}, []byte("request body too large"))
	case errors.Is(err, io.EOF), isTimeout(err):
		// end_of_stream or idle timeout: close without a response.
	default:
		protocol.WriteResponse(conn, 520, protocol.ResponseHeaders{}, []byte("undefined error: "+err.Error()))
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
