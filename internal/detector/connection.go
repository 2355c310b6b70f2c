package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State - trạng thái kết nối tới detector service.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// MessageHandler nhận từng frame JSON từ stream. Manager gọi handler
// tuần tự trên một goroutine duy nhất cho mỗi kết nối: frame thứ hai của
// cùng một biển số phải thấy được hiệu ứng của frame thứ nhất.
// Lỗi trả về chỉ được log, không làm sập kết nối.
type MessageHandler interface {
	HandleDetectorMessage(ctx context.Context, payload []byte) error
}

// ReconnectPolicy - tham số backoff, là cấu hình chứ không phải protocol.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxAttempts  int
	MaxDelay     time.Duration
}

// DelayFor trả về delay cho lần retry thứ n (1-indexed):
// min(initial * multiplier^(n-1), cap).
func (p ReconnectPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if capDelay := float64(p.MaxDelay); p.MaxDelay > 0 && d > capDelay {
		d = capDelay
	}
	return time.Duration(d)
}

// Status - snapshot cho badge trạng thái trên dashboard. Client không bao
// giờ thấy raw transport error, chỉ thấy state + attempt + countdown.
type Status struct {
	Role        string        `json:"role"`
	State       State         `json:"state"`
	Attempt     int           `json:"attempt,omitempty"`
	NextRetryIn time.Duration `json:"next_retry_in,omitempty"`
}

// Manager sở hữu đúng một link bền tới detector service cho một camera
// role (gate-monitor / lot-monitor / annotated-frames). Handler được inject
// lúc khởi tạo — không có đăng ký callback động, không có singleton.
//
// State machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connected
//	                                        \-> Disconnected (terminal sau MaxAttempts)
type Manager struct {
	role    string
	url     string
	policy  ReconnectPolicy
	handler MessageHandler

	// OnFatal được gọi đúng một lần khi hết số lần retry (exhausted-retry
	// failure). OnStateChange được gọi sau mỗi lần chuyển trạng thái.
	// Cả hai set trước khi gọi Connect; nil là hợp lệ.
	OnFatal       func(role string, err error)
	OnStateChange func(Status)

	mu              sync.Mutex
	ctx             context.Context
	conn            *websocket.Conn
	state           State
	attempt         int
	shouldReconnect bool
	retryTimer      *time.Timer
	nextRetryAt     time.Time
	fatalFired      bool
	gen             uint64 // mỗi Connect() mới tăng gen, vô hiệu hoá readLoop/timer cũ
}

func NewManager(role string, url string, policy ReconnectPolicy, handler MessageHandler) *Manager {
	return &Manager{
		role:    role,
		url:     url,
		policy:  policy,
		handler: handler,
		state:   StateDisconnected,
	}
}

// Connect mở kết nối mới, đóng kết nối cũ nếu có (idempotent). Một lần gọi
// Connect mới luôn thắng mọi reconnect đang chờ: attempt counter reset về 0.
// Trả về khi transport đã open; nếu lần dial đầu thất bại thì máy reconnect
// vẫn được kích hoạt và lỗi được trả về cho caller log.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.gen++
	gen := m.gen
	m.shouldReconnect = true
	m.attempt = 0
	m.fatalFired = false
	m.cancelRetryLocked()
	m.closeConnLocked()
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if err := m.dial(ctx, gen); err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen == m.gen && m.shouldReconnect {
			m.scheduleReconnectLocked(gen)
		}
		return fmt.Errorf("kết nối detector '%s' thất bại: %w", m.role, err)
	}
	return nil
}

// Disconnect là điểm huỷ duy nhất: tắt reconnect, huỷ timer đang chờ,
// đóng socket. An toàn khi gọi nhiều lần và từ bất kỳ trạng thái nào.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldReconnect = false
	m.gen++ // readLoop/timer thế hệ cũ trở thành no-op
	m.cancelRetryLocked()
	m.closeConnLocked()
	m.setStateLocked(StateDisconnected)
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{Role: m.role, State: m.state, Attempt: m.attempt}
	if m.state == StateReconnecting && !m.nextRetryAt.IsZero() {
		if d := time.Until(m.nextRetryAt); d > 0 {
			s.NextRetryIn = d
		}
	}
	return s
}

// dial mở socket và khởi động readLoop. Chỉ coi là thành công khi
// handshake hoàn tất (transport signals "open").
func (m *Manager) dial(ctx context.Context, gen uint64) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if gen != m.gen || !m.shouldReconnect {
		// Disconnect() hoặc Connect() mới đã thắng trong lúc dial.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.attempt = 0
	m.nextRetryAt = time.Time{}
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	log.Printf("Detector '%s': đã kết nối tới %s", m.role, m.url)
	go m.readLoop(ctx, conn, gen)
	return nil
}

// readLoop xử lý frame tuần tự: không bao giờ có hai frame của cùng một
// socket được handle song song.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			m.handleTransportClose(gen, err)
			return
		}

		if !json.Valid(payload) {
			// Message hỏng: log và bỏ, không ảnh hưởng sức khoẻ kết nối.
			log.Printf("Detector '%s': bỏ qua frame không phải JSON hợp lệ (%d bytes)", m.role, len(payload))
			continue
		}

		if err := m.handler.HandleDetectorMessage(ctx, payload); err != nil {
			// Lỗi xử lý (kể cả lỗi persistence) không làm sập link —
			// event tiếp theo có cơ hội khác.
			log.Printf("Detector '%s': lỗi xử lý frame: %v", m.role, err)
		}
	}
}

func (m *Manager) handleTransportClose(gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return // kết nối này đã bị thay thế
	}
	m.closeConnLocked()
	if !m.shouldReconnect {
		m.setStateLocked(StateDisconnected)
		return
	}
	log.Printf("Detector '%s': mất kết nối (%v), chuyển sang reconnecting", m.role, cause)
	m.scheduleReconnectLocked(gen)
}

// scheduleReconnectLocked tăng attempt và đặt timer cho lần thử kế tiếp.
// Gọi với m.mu đang giữ.
func (m *Manager) scheduleReconnectLocked(gen uint64) {
	m.attempt++
	if m.attempt > m.policy.MaxAttempts {
		m.setStateLocked(StateDisconnected)
		m.nextRetryAt = time.Time{}
		if !m.fatalFired {
			m.fatalFired = true
			err := fmt.Errorf("detector '%s': đã hết %d lần reconnect, dừng retry", m.role, m.policy.MaxAttempts)
			log.Print(err)
			if m.OnFatal != nil {
				go m.OnFatal(m.role, err)
			}
		}
		return
	}

	delay := m.policy.DelayFor(m.attempt)
	m.nextRetryAt = time.Now().Add(delay)
	m.setStateLocked(StateReconnecting)
	log.Printf("Detector '%s': retry lần %d/%d sau %s", m.role, m.attempt, m.policy.MaxAttempts, delay)

	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if gen != m.gen || !m.shouldReconnect {
			m.mu.Unlock()
			return
		}
		ctx := m.ctx
		m.setStateLocked(StateConnecting)
		m.mu.Unlock()

		if err := m.dial(ctx, gen); err != nil {
			log.Printf("Detector '%s': retry thất bại: %v", m.role, err)
			m.mu.Lock()
			if gen == m.gen && m.shouldReconnect {
				m.scheduleReconnectLocked(gen)
			}
			m.mu.Unlock()
		}
	})
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.nextRetryAt = time.Time{}
}

func (m *Manager) closeConnLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.OnStateChange != nil {
		status := Status{Role: m.role, State: s, Attempt: m.attempt}
		if s == StateReconnecting && !m.nextRetryAt.IsZero() {
			status.NextRetryIn = time.Until(m.nextRetryAt)
		}
		go m.OnStateChange(status)
	}
}
