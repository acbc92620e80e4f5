package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Endpoint serves a registry on /metrics.
type Endpoint struct {
	server   *http.Server
	listener net.Listener
	log      *slog.Logger
	done     chan struct{}
}

// NewRegistry returns a registry with the Go runtime and process collectors
// and the given collectors registered.
func NewRegistry(cs ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	all := append([]prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}, cs...)
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return reg, nil
}

func NewEndpoint(listen string, reg *prometheus.Registry, log *slog.Logger) *Endpoint {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Endpoint{
		server: &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log,
	}
}

func (e *Endpoint) Handler() http.Handler { return e.server.Handler }

// Start listens and serves in the background. The listen error, if any, is
// returned directly.
func (e *Endpoint) Start() error {
	l, err := net.Listen("tcp", e.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics endpoint: %w", err)
	}
	e.listener = l
	e.done = make(chan struct{})
	e.log.Info("metrics endpoint starting", "address", l.Addr().String())
	go func() {
		defer close(e.done)
		if err := e.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Addr is the address the endpoint listens on, once started.
func (e *Endpoint) Addr() string {
	if e.listener == nil {
		return e.server.Addr
	}
	return e.listener.Addr().String()
}

func (e *Endpoint) Shutdown(ctx context.Context) error {
	if e.done == nil {
		return nil
	}
	err := e.server.Shutdown(ctx)
	<-e.done
	e.log.Info("metrics endpoint stopped")
	return err
}
