package service

import (
	"sync"

	"parking_dashboard/internal/detector"
	"parking_dashboard/internal/domain"
)

// MonitorRegistry giữ các connection manager đang chạy để handler trạng
// thái (badge trên dashboard) và endpoint /monitors đọc snapshot.
type MonitorRegistry struct {
	mu       sync.RWMutex
	managers []*detector.Manager
	stream   *detector.StreamConsumer
}

func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{}
}

// StatusNotification chuyển snapshot kết nối sang payload cho dashboard.
func StatusNotification(st detector.Status) domain.ConnectionStatusNotification {
	return domain.ConnectionStatusNotification{
		Role:            st.Role,
		State:           string(st.State),
		Attempt:         st.Attempt,
		NextRetryInSecs: st.NextRetryIn.Seconds(),
	}
}

func (r *MonitorRegistry) RegisterManager(m *detector.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers = append(r.managers, m)
}

func (r *MonitorRegistry) RegisterStream(c *detector.StreamConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = c
}

// Statuses trả về snapshot trạng thái của mọi kết nối detector. Stream
// annotated frames kèm thêm FPS/latency.
func (r *MonitorRegistry) Statuses() []domain.ConnectionStatusNotification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ConnectionStatusNotification, 0, len(r.managers)+1)
	for _, m := range r.managers {
		st := m.Status()
		out = append(out, domain.ConnectionStatusNotification{
			Role:            st.Role,
			State:           string(st.State),
			Attempt:         st.Attempt,
			NextRetryInSecs: st.NextRetryIn.Seconds(),
		})
	}
	if r.stream != nil {
		st := r.stream.Status()
		metrics := r.stream.Metrics()
		out = append(out, domain.ConnectionStatusNotification{
			Role:            st.Role,
			State:           string(st.State),
			Attempt:         st.Attempt,
			NextRetryInSecs: st.NextRetryIn.Seconds(),
			FramesPerSecond: metrics.FramesPerSecond,
			LatencyMs:       metrics.LatencyMs,
		})
	}
	return out
}
