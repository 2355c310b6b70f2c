package detector

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"parking_dashboard/internal/domain"
)

// metricsResetInterval - chu kỳ reset thống kê latency để tránh drift
// sau các session dài.
const metricsResetInterval = 5 * time.Minute

// StreamMetrics - số liệu quan sát của stream annotated frames.
// Chỉ phục vụ observability, không ảnh hưởng hành vi reconnect.
type StreamMetrics struct {
	FramesPerSecond float64 `json:"frames_per_second"`
	LatencyMs       float64 `json:"latency_ms"`
	TotalFrames     int64   `json:"total_frames"`
}

// FrameSink nhận frame đã decode; dashboard hub implement interface này
// để đẩy frame xuống browser.
type FrameSink interface {
	PushAnnotatedFrame(frame domain.AnnotatedFrame)
}

// StreamConsumer - instance song song của Connection Manager pattern,
// kéo annotated video frames từ detector. Cùng một primitive
// backoff/reconnect, khác chiều transport và payload.
type StreamConsumer struct {
	manager *Manager
	sink    FrameSink

	mu           sync.Mutex
	windowStart  time.Time
	windowFrames int64
	lastFPS      float64
	latencySum   float64
	latencyCount int64
	lastReset    time.Time
	totalFrames  int64
}

func NewStreamConsumer(url string, policy ReconnectPolicy, sink FrameSink) *StreamConsumer {
	c := &StreamConsumer{
		sink:      sink,
		lastReset: time.Now(),
	}
	c.manager = NewManager("annotated-frames", url, policy, c)
	return c
}

// Manager trả về connection manager bên dưới để caller wire OnFatal /
// OnStateChange trước khi Start.
func (c *StreamConsumer) Manager() *Manager {
	return c.manager
}

func (c *StreamConsumer) Start(ctx context.Context) error {
	return c.manager.Connect(ctx)
}

func (c *StreamConsumer) Stop() {
	c.manager.Disconnect()
}

func (c *StreamConsumer) Status() Status {
	return c.manager.Status()
}

// HandleDetectorMessage implement MessageHandler: đo FPS theo cửa sổ trượt
// 1 giây và latency = thời điểm nhận - sent_at nhúng trong payload.
func (c *StreamConsumer) HandleDetectorMessage(_ context.Context, payload []byte) error {
	receivedAt := time.Now()

	var frame domain.AnnotatedFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		log.Printf("StreamConsumer: bỏ qua frame không decode được: %v", err)
		return nil
	}

	c.recordFrame(receivedAt, frame.SentAt)

	if c.sink != nil {
		c.sink.PushAnnotatedFrame(frame)
	}
	return nil
}

func (c *StreamConsumer) recordFrame(receivedAt time.Time, sentAtUnix float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalFrames++

	// Cửa sổ 1 giây: khi cửa sổ hết hạn, chốt FPS và mở cửa sổ mới.
	if c.windowStart.IsZero() || receivedAt.Sub(c.windowStart) >= time.Second {
		if !c.windowStart.IsZero() {
			elapsed := receivedAt.Sub(c.windowStart).Seconds()
			if elapsed > 0 {
				c.lastFPS = float64(c.windowFrames) / elapsed
			}
		}
		c.windowStart = receivedAt
		c.windowFrames = 0
	}
	c.windowFrames++

	if sentAtUnix > 0 {
		sentAt := time.Unix(0, int64(sentAtUnix*float64(time.Second)))
		latency := receivedAt.Sub(sentAt)
		if latency >= 0 {
			c.latencySum += float64(latency.Milliseconds())
			c.latencyCount++
		}
	}

	// Reset định kỳ để trung bình latency không bị kéo lệch bởi lịch sử
	// quá dài sau nhiều giờ chạy.
	if receivedAt.Sub(c.lastReset) >= metricsResetInterval {
		c.latencySum = 0
		c.latencyCount = 0
		c.lastReset = receivedAt
	}
}

func (c *StreamConsumer) Metrics() StreamMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := StreamMetrics{
		FramesPerSecond: c.lastFPS,
		TotalFrames:     c.totalFrames,
	}
	if c.latencyCount > 0 {
		m.LatencyMs = c.latencySum / float64(c.latencyCount)
	}
	return m
}
