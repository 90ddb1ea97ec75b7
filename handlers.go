package livelog

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mroth/livelog/internal/debug"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// routes classifies requests by path depth:
//
//	/                     index
//	/{channel}/           channel page, issues a new session
//	/{channel}/{session}/ event stream for that session
//
// The trailing slash is optional. Everything else, including non-GET
// requests, is a 404.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.commonHeaders)
	if debug.Enabled() {
		r.Use(middleware.Logger)
	}
	// a panicking renderer or encoder answers 500 instead of taking the
	// process down.
	r.Use(middleware.Recoverer)

	r.Get("/", s.serveIndex)
	r.Get("/{channel}", s.servePage)
	r.Get("/{channel}/", s.servePage)
	r.Get("/{channel}/{session}", s.serveStream)
	r.Get("/{channel}/{session}/", s.serveStream)

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.notFound)
	return r
}

func (s *Server) commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		debug.Debug("request " + r.Method + " " + r.URL.Path)
		headers := w.Header()
		headers.Set("Cache-Control", "no-cache")
		if s.conf.CORSAllowOrigin != "" {
			headers.Set("Access-Control-Allow-Origin", s.conf.CORSAllowOrigin)
		}
		headers.Set("Server", "mroth/livelog")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	debug.Debug("not found: " + r.Method + " " + r.URL.Path)
	w.Header().Set("Connection", "close")
	http.NotFound(w, r)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "livelog.index",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	doc := s.conf.Index(s.registry.allNames())
	writeDocument(w, strings.ReplaceAll(doc, PortMarker, strconv.Itoa(s.Port())))
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "channel")
	_, span := s.tracer.Start(r.Context(), "livelog.page",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("livelog.channel", name)))
	defer span.End()

	ch, ok := s.registry.lookup(name)
	if !ok {
		span.SetStatus(codes.Error, "unknown channel")
		s.notFound(w, r)
		return
	}

	session := ch.issueSession()
	writeDocument(w, render(ch.kind.Page(), s.Port(), ch.name, session))
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	ch, c := s.bindStream(w, r)
	if c == nil {
		s.notFound(w, r)
		return
	}

	ip := clientIP(r)
	log.Println("CONNECT\t", ch.name, "\t", ip)
	defer log.Println("DISCONNECT\t", ch.name, "\t", ip)

	s.hold(r.Context(), ch, c)
}

// bindStream attaches a new connection for the request to its channel. It
// returns a nil connection if the channel is unknown or the session is not
// the channel's current one.
func (s *Server) bindStream(w http.ResponseWriter, r *http.Request) (*channel, *connection) {
	name := urlParam(r, "channel")
	_, span := s.tracer.Start(r.Context(), "livelog.stream",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("livelog.channel", name)))
	defer span.End()

	ch, ok := s.registry.lookup(name)
	if !ok {
		span.SetStatus(codes.Error, "unknown channel")
		return nil, nil
	}

	c := newConnection(w, r)
	bound := ch.tryBind(urlParam(r, "session"), c)
	span.SetAttributes(attribute.Bool("livelog.bound", bound))
	if !bound {
		span.SetStatus(codes.Error, "stale session")
		return ch, nil
	}
	return ch, c
}

// hold keeps the stream response open until the channel lets go of it or the
// client goes away. All writes happen under the channel lock, so once hold
// returns nothing touches the response again.
func (s *Server) hold(ctx context.Context, ch *channel, c *connection) {
	var keepalive <-chan time.Time
	if s.conf.KeepAlive > 0 {
		t := time.NewTicker(s.conf.KeepAlive)
		defer t.Stop()
		keepalive = t.C
	}

	for {
		select {
		case <-c.done:
			debug.Debug("stream for " + ch.name + " was let go")
			return
		case <-keepalive:
			if !ch.keepalive(c) {
				return
			}
		case <-ctx.Done():
			debug.Debug("client of " + ch.name + " went away")
			ch.detach(c)
			return
		}
	}
}

func writeDocument(w http.ResponseWriter, doc string) {
	headers := w.Header()
	headers.Set("Content-Type", "text/html; charset=utf-8")
	headers.Set("Content-Length", strconv.Itoa(len(doc)))
	headers.Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, doc); err != nil {
		debug.Debug("error writing document:", err)
	}
}

// urlParam returns the unescaped route parameter key.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
