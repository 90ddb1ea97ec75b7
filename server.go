package livelog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mroth/livelog/internal/debug"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPort = 54881
	DefaultHost = "localhost"
)

const tracerName = "github.com/mroth/livelog"

// Server is the primary interface to a livelog server.
//
// A Server owns a fixed set of channels, registered with WithChannel. Browsers
// load "/{channel}/" to obtain a page bound to a fresh session and the page
// then opens "/{channel}/{session}/" as its event stream. Application code
// sends messages with Push or PushAsync.
//
// Server implements the http.Handler interface, and can be chained into
// existing HTTP routing muxes if desired, or it can listen on its own with
// Start.
type Server struct {
	registry *registry
	router   http.Handler
	metrics  *metrics
	tracer   trace.Tracer
	port     atomic.Int64

	conf  serverConfig
	specs []channelSpec

	mu    sync.Mutex
	state lifecycle
	srv   *http.Server
	addr  net.Addr
}

type lifecycle int

const (
	uninitialized lifecycle = iota
	running
	closed
)

// serverConfig defines configurable options that can be customized for a Server.
type serverConfig struct {
	Host            string
	Port            int
	Debug           bool
	Index           IndexRenderer
	CORSAllowOrigin string        // Access-Control-Allow-Origin header value (dont send header if blank)
	KeepAlive       time.Duration // comment frame interval on live streams, 0 disables
	Registerer      prometheus.Registerer
	TracerProvider  trace.TracerProvider
}

// NewServer creates a new Server with optional ServerOptions for configuration.
//
// The channel set is fixed once NewServer returns.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		conf: serverConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			Index:           DefaultIndex,
			CORSAllowOrigin: "*",
		},
	}

	// set configuration from provided options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.conf.Debug {
		debug.Enable()
	}
	if s.conf.Registerer != nil {
		s.metrics = newMetrics(s.conf.Registerer)
	}
	tp := s.conf.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(tracerName)

	reg, err := newRegistry(s.specs, s.metrics)
	if err != nil {
		return nil, err
	}
	s.registry = reg
	s.specs = nil
	s.port.Store(int64(s.conf.Port))
	s.router = s.routes()

	for _, name := range reg.allNames() {
		debug.Debug(name + " added")
	}
	return s, nil
}

// ServerOptions defines a set of high-level user options that can be customized
type ServerOption func(s *Server) error

// WithChannel registers a channel under name, presented and encoded by kind.
//
// Names must be non-empty, only use the characters A-Z a-z 0-9 . _ ~ - and +,
// and not consist of dots alone, so that they fit in a URL path segment as is.
func WithChannel(name string, kind Kind) ServerOption {
	return func(s *Server) error {
		s.specs = append(s.specs, channelSpec{name: name, kind: kind})
		return nil
	}
}

// WithPort sets the port Start listens on and that pages are rendered with.
// Port 0 picks a free port on Start.
func WithPort(port int) ServerOption {
	return func(s *Server) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("livelog: invalid port %d", port)
		}
		s.conf.Port = port
		return nil
	}
}

// WithHost sets the interface Start listens on. Defaults to localhost.
func WithHost(host string) ServerOption {
	return func(s *Server) error {
		s.conf.Host = host
		return nil
	}
}

// WithDebug turns on verbose tracing for the whole process.
func WithDebug(enabled bool) ServerOption {
	return func(s *Server) error {
		s.conf.Debug = enabled
		return nil
	}
}

// WithIndex replaces the document served at "/". The renderer receives the
// sorted channel names, and PortMarker in its output is substituted.
func WithIndex(index IndexRenderer) ServerOption {
	return func(s *Server) error {
		if index == nil {
			return errors.New("livelog: nil index renderer")
		}
		s.conf.Index = index
		return nil
	}
}

// WithCORSAllowOrigin sets the Access-Control-Allow-Origin header value to origin.
// If set to the zero value (""), the header will not be sent.
//
// Defaults to "*", pages are allowed to open streams from any origin.
//
// See https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Allow-Origin.
func WithCORSAllowOrigin(origin string) ServerOption {
	return func(s *Server) error {
		s.conf.CORSAllowOrigin = origin
		return nil
	}
}

// WithKeepAlive writes a comment frame to every live stream each interval d,
// so that idle streams survive proxies and dead peers are noticed without
// waiting for the next push. Zero, the default, disables it.
func WithKeepAlive(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("livelog: negative keepalive interval %v", d)
		}
		s.conf.KeepAlive = d
		return nil
	}
}

// WithMetrics registers the server's Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) ServerOption {
	return func(s *Server) error {
		s.conf.Registerer = reg
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry provider request spans are created
// from. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) error {
		s.conf.TracerProvider = tp
		return nil
	}
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start binds the configured host and port and begins serving in the
// background. Every accepted connection is served on its own goroutine.
//
// Start returns ErrAlreadyRunning if the server is already serving and
// ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case running:
		return ErrAlreadyRunning
	case closed:
		return ErrServerClosed
	}

	addr := net.JoinHostPort(s.conf.Host, strconv.Itoa(s.conf.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("livelog: listen on %s: %w", addr, err)
	}
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		s.port.Store(int64(tcp.Port))
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv
	s.addr = l.Addr()
	s.state = running

	log.Printf("livelog started at http://%s/", l.Addr())
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("livelog: serve error: %v", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the port substituted into rendered pages. After Start with
// port 0 this is the port actually bound.
func (s *Server) Port() int {
	return int(s.port.Load())
}

// Shutdown a server gracefully, closing active streams.
//
// Channels stop accepting new streams immediately. If the server was started,
// its listener is closed and Shutdown waits, until ctx is done, for in-flight
// requests to finish. Calling Shutdown more than once is safe; a shut down
// server cannot be started again.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.state = closed
	s.mu.Unlock()

	s.registry.shutdown()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
