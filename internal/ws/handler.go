package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/collab"
	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to the real-time channel and pumps frames
// between the socket and a collab session.
type Handler struct {
	hub      *collab.Hub
	upgrader websocket.Upgrader

	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
	maxMessage   int64
}

func NewHandler(hub *collab.Hub, rt config.RealtimeConfig) *Handler {
	h := &Handler{
		hub:          hub,
		writeWait:    rt.WriteWait,
		pongWait:     rt.PongWait,
		pingInterval: rt.PingInterval,
		maxMessage:   rt.MaxMessageBytes,
	}
	if h.writeWait <= 0 {
		h.writeWait = 10 * time.Second
	}
	if h.pongWait <= 0 {
		h.pongWait = 60 * time.Second
	}
	if h.pingInterval <= 0 || h.pingInterval >= h.pongWait {
		h.pingInterval = h.pongWait * 9 / 10
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(rt.AllowedOrigins),
	}
	return h
}

// originChecker allows same-host requests, requests without an Origin header
// and the configured origins ("*" allows any).
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = struct{}{}
	}
	_, anyOrigin := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		if _, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Serve is the gin handler for the websocket endpoint.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		logger.Warnf("websocket upgrade from %s failed: %v", c.ClientIP(), err)
		return
	}
	// the request context ends when the handler returns; the session outlives it
	s := h.hub.Connect(context.WithoutCancel(c.Request.Context()))
	logger.With("session", s.ID()).Debugf("websocket connected from %s", c.ClientIP())

	go h.writePump(conn, s)
	go h.readPump(conn, s)
}

func (h *Handler) readPump(conn *websocket.Conn, s *collab.Session) {
	defer func() {
		s.Close()
		conn.Close()
	}()
	if h.maxMessage > 0 {
		conn.SetReadLimit(h.maxMessage)
	}
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.With("session", s.ID()).Infof("websocket read: %v", err)
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		s.HandleFrame(raw)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, s *collab.Session) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
		conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.With("session", s.ID()).Debugf("websocket write: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
