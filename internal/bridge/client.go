package bridge

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client is one websocket connection. serve reads; writeLoop owns every
// write to conn.
type client struct {
	srv     *Server
	conn    *websocket.Conn
	ip      string
	limiter *rate.Limiter
	authed  bool
}

func newClient(srv *Server, conn *websocket.Conn, ip string) *client {
	limit := rate.Inf
	if srv.cfg.RateLimit.PerSecond > 0 {
		limit = rate.Limit(srv.cfg.RateLimit.PerSecond)
	}
	burst := srv.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return &client{
		srv:     srv,
		conn:    conn,
		ip:      ip,
		limiter: rate.NewLimiter(limit, burst),
		authed:  srv.cfg.TokenHash == "",
	}
}

func (c *client) serve() {
	defer c.conn.Close()
	logger.Info("Bridge client connected", "client_ip", c.ip)

	c.conn.SetReadLimit(c.srv.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	out := make(chan Response, 16)
	go c.writeLoop(out)
	defer close(out)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warning("Bridge read failed", "client_ip", c.ip, "error", err)
			}
			logger.Info("Bridge client disconnected", "client_ip", c.ip)
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			out <- Response{OK: false, Error: "malformed request: " + err.Error()}
			continue
		}
		if !c.limiter.Allow() {
			logger.Warning("Bridge command rate limited", "client_ip", c.ip, "op", req.Op)
			out <- errorResponse(req, ErrRateLimited)
			continue
		}
		if req.Op == OpAuth {
			out <- c.authenticate(req)
			continue
		}
		if !c.authed {
			out <- errorResponse(req, ErrUnauthorized)
			continue
		}
		out <- c.srv.Execute(req)
	}
}

func (c *client) authenticate(req Request) Response {
	if c.srv.cfg.TokenHash == "" {
		c.authed = true
		return Response{ID: req.ID, Op: req.Op, OK: true}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.srv.cfg.TokenHash), []byte(req.Token)); err != nil {
		logger.Warning("Bridge authentication failed", "client_ip", c.ip)
		return errorResponse(req, ErrUnauthorized)
	}
	c.authed = true
	logger.Info("Bridge client authenticated", "client_ip", c.ip)
	return Response{ID: req.ID, Op: req.Op, OK: true}
}

func (c *client) writeLoop(out <-chan Response) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case resp, ok := <-out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(resp); err != nil {
				logger.Debug("Bridge write failed", "client_ip", c.ip, "error", err)
				c.drain(out)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain(out)
				return
			}
		}
	}
}

// drain keeps serve from blocking after the writer gave up.
func (c *client) drain(out <-chan Response) {
	c.conn.Close()
	for range out {
	}
}
