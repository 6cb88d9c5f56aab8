// Package app wires the configured components — slide cache, dispatcher,
// worker pool, reactor, TLS, metrics — into a runnable server and owns its
// startup/shutdown sequencing. It replaces the teacher's App/Engine pair
// (a generic route-registering HTTP framework) with a fixed pipeline,
// since this server exposes one fixed surface (§4.5/§4.8) rather than
// arbitrary user routes.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/iris-restful/config"
	"github.com/searchktools/iris-restful/core/pools"
	"github.com/searchktools/iris-restful/core/reactor"
	"github.com/searchktools/iris-restful/core/restapi"
	"github.com/searchktools/iris-restful/core/slide"
	"github.com/searchktools/iris-restful/core/slidecache"
	"github.com/searchktools/iris-restful/internal/telemetry"
	"github.com/searchktools/iris-restful/internal/tlsboot"
)

var logger = telemetry.NewLogger("app")

// App holds every long-lived component for one server instance.
type App struct {
	cfg     *config.Config
	cache   *slidecache.Cache
	pool    *pools.WorkerPool
	metrics *telemetry.Metrics
	reactor *reactor.Reactor

	ln         net.Listener
	metricsSrv *http.Server
	dispatcher *restapi.Dispatcher
}

// New assembles an App from a loaded Config. It opens the slide cache and
// starts the worker pool but does not yet bind a listener — call Run for
// that.
func New(cfg *config.Config) *App {
	pools.ApplyGCConfig(pools.DefaultGCConfig())

	metrics := telemetry.NewMetrics()

	cache := slidecache.New(cfg.SlideDir, slide.DefaultCodec)
	cache.SetMetrics(metrics)

	pool := pools.NewWorkerPool(cfg.NumWorkers)
	pool.SetMetrics(metrics)

	return &App{
		cfg:     cfg,
		cache:   cache,
		pool:    pool,
		metrics: metrics,
	}
}

// Run binds the configured listener (TLS unless --http-only), starts the
// optional /debug/metrics server, and serves until a termination signal
// arrives or the listener fails. It blocks until shutdown completes.
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.cfg.Port)

	ln, err := a.listen(addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", addr, err)
	}
	a.ln = ln

	a.dispatcher = restapi.NewDispatcher(a.cache, a.cfg.DocRoot, a.cfg.CORS)
	a.reactor = reactor.New(ln, a.pool, a.dispatcher, a.cfg.NumAcceptors)

	if a.cfg.MetricsAddr != "" {
		a.startMetricsServer()
	}

	logger.Banner("🚀", "iris-restful starting on %s (tls=%v, slide_dir=%s)", addr, a.cfg.HTTPS, a.cfg.SlideDir)
	logger.Banner("⚡", "%d workers, %d acceptors", a.pool.Stats().NumWorkers, a.cfg.NumAcceptors)

	done := make(chan struct{})
	go func() {
		a.reactor.Serve()
		close(done)
	}()

	a.awaitSignal()
	a.shutdown()
	<-done
	return nil
}

func (a *App) listen(addr string) (net.Listener, error) {
	if !a.cfg.HTTPS {
		return net.Listen("tcp", addr)
	}
	tlsCfg, err := tlsboot.Load(a.cfg.Cert, a.cfg.Key)
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", addr, tlsCfg)
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics", a.metrics.Handler())
	a.metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Printf("metrics listening on %s", a.cfg.MetricsAddr)
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server stopped: %v", err)
		}
	}()
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-quit
	logger.Printf("signal received: %v, shutting down", sig)
}

// shutdown drains the worker pool (finishing in-flight requests), closes
// the listener so no new connections are accepted, and closes the slide
// cache's file watch. Connections already past Accept but blocked on a
// keep-alive read exit on their own idle timeout or next failed read,
// since there is no per-connection cancellation signal in this model —
// matching the reference server's own best-effort shutdown.
func (a *App) shutdown() {
	if a.ln != nil {
		a.ln.Close()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.metricsSrv.Shutdown(ctx)
	}
	a.pool.Drain()
	a.cache.Close()
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
}
