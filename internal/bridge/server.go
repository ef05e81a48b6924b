// Package bridge exposes a forge.Session to editor tooling over a websocket.
// Clients send one JSON Request per text message and get one Response
// back. Commands from all connections run one at a time.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/levelforge/internal/config"
	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/report"
)

// AfterFunc is called after every command that may have changed state,
// failed table commands included, while the session lock is still held.
type AfterFunc func(op string, res *forge.Result)

// Server accepts websocket clients and runs their commands.
type Server struct {
	cfg      config.BridgeConfig
	session  *forge.Session
	recorder *report.Recorder
	after    AfterFunc

	mu    sync.Mutex // serializes every session operation
	table *datatable.Table

	conns *connLimiter
}

// New creates a server for session. recorder, when not nil, must be one of
// the session's sinks; its messages are drained into each response.
func New(cfg config.BridgeConfig, session *forge.Session, recorder *report.Recorder) *Server {
	return &Server{
		cfg:      cfg,
		session:  session,
		recorder: recorder,
		conns:    newConnLimiter(cfg.MaxConnections),
	}
}

// OnChange registers fn to run after state-changing commands.
func (s *Server) OnChange(fn AfterFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = fn
}

// SetTable swaps the data table used by table-driven commands.
func (s *Server) SetTable(t *datatable.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
}

// Handler returns the HTTP handler serving the socket at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Command bridge listening", "address", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := realIP(r)

	if !s.conns.TryAcquire() {
		logger.Warning("Bridge connection rejected - limit exceeded", "client_ip", clientIP)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("Bridge connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Bridge upgrade failed", "error", err)
		s.conns.Release()
		return
	}

	go func() {
		defer s.conns.Release()
		newClient(s, conn, clientIP).serve()
	}()
}

// connLimiter caps the number of open sockets.
type connLimiter struct {
	mu    sync.Mutex
	open  int
	limit int
}

func newConnLimiter(limit int) *connLimiter {
	return &connLimiter{limit: limit}
}

func (c *connLimiter) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.open >= c.limit {
		return false
	}
	c.open++
	return true
}

func (c *connLimiter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open > 0 {
		c.open--
	}
}

func (c *connLimiter) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// realIP prefers X-Forwarded-For and X-Real-IP when a proxy sits in front.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
