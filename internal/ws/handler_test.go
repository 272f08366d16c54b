package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/collab"
	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu   sync.Mutex
	docs map[string]string
}

func (m *mapStore) Load(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[id]
	if !ok {
		return "", collab.ErrNotFound
	}
	return c, nil
}

func (m *mapStore) Save(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = content
	return nil
}

func newServer(t *testing.T, rt config.RealtimeConfig) (*httptest.Server, *collab.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := collab.NewHub(&mapStore{docs: map[string]string{"D1": `["base"]`}}, collab.Options{})
	r := gin.New()
	r.GET("/ws", NewHandler(hub, rt).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(collab.Message{Event: event, Data: b}))
}

func readMsg(t *testing.T, conn *websocket.Conn) collab.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg collab.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocket_JoinAndRelay(t *testing.T) {
	srv, hub := newServer(t, config.RealtimeConfig{AllowedOrigins: []string{"*"}})
	a := dial(t, srv, nil)
	b := dial(t, srv, nil)

	writeMsg(t, a, collab.EventJoinDocument, "D1")
	msg := readMsg(t, a)
	require.Equal(t, collab.EventLoadDocument, msg.Event)
	require.JSONEq(t, `["base"]`, string(msg.Data))

	writeMsg(t, b, collab.EventJoinDocument, map[string]string{"documentId": "D1"})
	require.Equal(t, collab.EventLoadDocument, readMsg(t, b).Event)

	writeMsg(t, a, collab.EventSendChanges, map[string]any{"documentId": "D1", "delta": map[string]string{"insert": "x"}})
	msg = readMsg(t, b)
	require.Equal(t, collab.EventReceiveChanges, msg.Event)
	require.JSONEq(t, `{"insert":"x"}`, string(msg.Data))

	// closing a socket removes its session from the room
	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		return len(hub.Registry().MembersOf("D1", "")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newServer(t, config.RealtimeConfig{AllowedOrigins: []string{"https://app.example.com"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": {"https://app.example.com/"}})
	writeMsg(t, conn, collab.EventJoinDocument, "D2")
	require.Equal(t, collab.EventLoadDocument, readMsg(t, conn).Event)
}

func TestWebsocket_OversizedFrameClosesConnection(t *testing.T) {
	srv, hub := newServer(t, config.RealtimeConfig{MaxMessageBytes: 64})
	conn := dial(t, srv, nil)
	writeMsg(t, conn, collab.EventJoinDocument, "D1")
	readMsg(t, conn)

	writeMsg(t, conn, collab.EventSendChanges, map[string]string{"documentId": "D1", "delta": strings.Repeat("x", 256)})
	require.Eventually(t, func() bool {
		return len(hub.Registry().Documents()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://a.example.com"})
	req := httptest.NewRequest(http.MethodGet, "http://collab.local/ws", nil)
	require.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "http://collab.local")
	require.True(t, check(req), "same host")

	req.Header.Set("Origin", "HTTPS://A.example.com")
	require.True(t, check(req))

	req.Header.Set("Origin", "https://b.example.com")
	require.False(t, check(req))

	require.True(t, originChecker([]string{"*"})(req))
}
