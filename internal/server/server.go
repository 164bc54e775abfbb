// Package server accepts WebSocket connections and dispatches their JSON-RPC
// requests to the tool invoker.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toolrelay/toolrelay/internal/config"
	"github.com/toolrelay/toolrelay/internal/metrics"
	"github.com/toolrelay/toolrelay/internal/tools"
)

// BindError reports a listen failure other than the address being in use.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Server owns the listening socket and every connection accepted on it.
type Server struct {
	cfg     config.ServerConfig
	log     *slog.Logger
	invoker *tools.Invoker
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	ln      net.Listener
	httpSrv *http.Server
	served  chan struct{}
	baseCtx context.Context
	cancel  context.CancelFunc
	conns   map[*conn]struct{}
	connWG  sync.WaitGroup
	stopped bool
}

// New creates a Server. m may be nil, in which case nothing is recorded and
// /metrics is not served.
func New(log *slog.Logger, cfg config.ServerConfig, invoker *tools.Invoker, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.With("component", "server"),
		invoker: invoker,
		metrics: m,
		upgrader: websocket.Upgrader{
			// No authentication or origin policy; any client may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

// Start binds the listener and begins serving in the background. If the
// preferred port is in use it tries each next port in turn. It returns the
// port actually bound.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return 0, errors.New("server: already started")
	}

	ln, err := s.listen(ctx)
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port

	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.ln = ln
	s.served = make(chan struct{})
	s.httpSrv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	go func() {
		defer close(s.served)
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server: serve failed", "err", err)
		}
	}()

	s.log.Info("server: started", "addr", ln.Addr().String(), "port", port)
	return port, nil
}

// listen binds host:port, moving to port+1 for as long as the address is in
// use. The successful listener is kept, so there is no gap between probing
// and binding.
func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	port := s.cfg.Port
	for {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return ln, nil
		}
		if port == 0 || !errors.Is(err, syscall.EADDRINUSE) {
			return nil, &BindError{Addr: addr, Err: err}
		}
		s.log.Info("server: port in use, trying next", "port", port, "next", port+1)
		port++
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil && s.cfg.Metrics {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error to the client.
		s.log.Debug("server: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(s, ws)
	if !s.track(c) {
		_ = ws.Close()
		return
	}
	defer s.untrack(c)

	if s.metrics != nil {
		s.metrics.ConnectionOpened()
		defer s.metrics.ConnectionClosed()
	}
	c.serve(s.baseCtx)
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[c] = struct{}{}
	s.connWG.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.connWG.Done()
}

// Stop closes the listener and every open connection, then waits for their
// handlers to return or for ctx to end. It returns nil if the server was never
// started, and is a no-op when called again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.httpSrv == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.cancel()
	open := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		open = append(open, c)
	}
	srv, ln, served := s.httpSrv, s.ln, s.served
	s.mu.Unlock()

	// Shutdown closes the listener and idle HTTP connections. Upgraded
	// connections are hijacked, so they are closed here.
	httpErr := srv.Shutdown(ctx)
	for _, c := range open {
		c.close()
	}

	lnErr := ln.Close()
	if errors.Is(lnErr, net.ErrClosed) {
		lnErr = nil
	}

	done := make(chan struct{})
	go func() {
		s.connWG.Wait()
		<-served
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(httpErr, lnErr, ctx.Err())
	}

	s.log.Info("server: stopped")
	return errors.Join(httpErr, lnErr)
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// initializeResult answers the initialize method.
type initializeResult struct {
	ServerInfo   serverInfo   `json:"serverInfo"`
	Capabilities capabilities `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools any `json:"tools"`
}

type listResult struct {
	Tools any `json:"tools"`
}

func (s *Server) initialize() initializeResult {
	return initializeResult{
		ServerInfo:   serverInfo{Name: s.cfg.Name, Version: s.cfg.Version},
		Capabilities: capabilities{Tools: s.invoker.Registry().List()},
	}
}
