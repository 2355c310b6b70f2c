package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWSServer(t *testing.T) (*WebSocketManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	wsm := NewWebSocketManager()
	go wsm.Start()

	r := gin.New()
	h := NewWebSocketHandler(wsm)
	r.GET("/ws", h.HandleWebSocket)
	return wsm, httptest.NewServer(r)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestBroadcastDeliversEnvelope(t *testing.T) {
	wsm, srv := startWSServer(t)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	// Chờ hub register client trước khi publish.
	time.Sleep(50 * time.Millisecond)

	wsm.BroadcastCapacityUpdate(domain.CapacityUpdateNotification{
		LotID:         1,
		TotalSlots:    20,
		Occupied:      18,
		OccupancyRate: 0.9,
		Timestamp:     time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.DashboardEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, domain.EventCapacityUpdate, event.Type)
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())

	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["lot_id"])
	assert.Equal(t, float64(18), data["occupied"])
}

func TestBroadcastReachesAllClients(t *testing.T) {
	wsm, srv := startWSServer(t)
	defer srv.Close()

	first := dialWS(t, srv)
	defer first.Close()
	second := dialWS(t, srv)
	defer second.Close()
	time.Sleep(50 * time.Millisecond)

	wsm.BroadcastAlert(domain.Alert{ID: 5, Type: domain.AlertCapacityWarning, LotID: 1, Status: domain.AlertActive})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var event domain.DashboardEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, domain.EventAlert, event.Type)
	}
}

func TestPublishNeverBlocksProducer(t *testing.T) {
	// Không có consumer nào rút khỏi kênh broadcast: publish vẫn phải trả
	// về ngay (drop khi đầy), producer không bao giờ bị kìm.
	wsm := NewWebSocketManager() // Start() cố tình không chạy

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBufferSize*4; i++ {
			wsm.BroadcastConnectionStatus(domain.ConnectionStatusNotification{
				Role:  "gate-monitor",
				State: "reconnecting",
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish bị block khi kênh broadcast đầy")
	}
}
