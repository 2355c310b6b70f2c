package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Cho phép kết nối từ mọi nguồn
	},
}

// sendBufferSize - số message đệm cho mỗi client. Client rút chậm hơn
// tốc độ publish sẽ bị drop message thay vì kìm producer.
const sendBufferSize = 256

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager fan-out event dashboard tới mọi client đang kết nối.
// Mỗi client có send channel riêng với writePump riêng: một client chậm
// hay đã ngắt không bao giờ chặn Reconciler hay Violation Engine.
// Delivery là best-effort, không replay cho client kết nối muộn.
type WebSocketManager struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	mutex      sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, sendBufferSize),
	}
}

func (wsm *WebSocketManager) Start() {
	for {
		select {
		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			log.Printf("WebSocket client connected. Total: %d", total)

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				close(client.send)
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case message := <-wsm.broadcast:
			wsm.mutex.RLock()
			for client := range wsm.clients {
				select {
				case client.send <- message:
				default:
					// Buffer đầy: drop message cho client này, các client
					// khác không bị ảnh hưởng.
				}
			}
			wsm.mutex.RUnlock()
		}
	}
}

// publish đóng event vào envelope chung rồi đẩy vào kênh broadcast.
// Non-blocking: nếu hub đang nghẽn thì drop, producer không bao giờ chờ.
func (wsm *WebSocketManager) publish(eventType domain.DashboardEventType, data interface{}) {
	event := domain.DashboardEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("WebSocketManager: lỗi marshal event %s: %v", eventType, err)
		return
	}

	select {
	case wsm.broadcast <- message:
	default:
		log.Printf("WebSocketManager: broadcast channel đầy, drop event %s", eventType)
	}
}

// --- service.Broadcaster ---

func (wsm *WebSocketManager) BroadcastCapacityUpdate(n domain.CapacityUpdateNotification) {
	wsm.publish(domain.EventCapacityUpdate, n)
}

func (wsm *WebSocketManager) BroadcastVehicleEvent(eventType domain.DashboardEventType, n domain.VehicleEventNotification) {
	wsm.publish(eventType, n)
}

func (wsm *WebSocketManager) BroadcastViolation(v domain.Violation) {
	wsm.publish(domain.EventViolation, v)
}

func (wsm *WebSocketManager) BroadcastAlert(a domain.Alert) {
	wsm.publish(domain.EventAlert, a)
}

func (wsm *WebSocketManager) BroadcastConnectionStatus(n domain.ConnectionStatusNotification) {
	wsm.publish(domain.EventConnectionStatus, n)
}

// --- detector.FrameSink ---

// PushAnnotatedFrame relay frame video đã annotate xuống dashboard.
// Frame đi cùng kênh broadcast với event, client tự lọc theo type.
func (wsm *WebSocketManager) PushAnnotatedFrame(frame domain.AnnotatedFrame) {
	wsm.publish(domain.EventAnnotatedFrame, frame)
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.wsManager.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *wsClient) {
	defer client.conn.Close()
	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Error writing to WebSocket client: %v", err)
			break
		}
	}
}

// readPump chỉ để phát hiện disconnect; client không gửi gì lên server.
func (h *WebSocketHandler) readPump(client *wsClient) {
	defer func() {
		h.wsManager.unregister <- client
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
