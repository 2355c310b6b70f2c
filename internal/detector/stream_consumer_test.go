package detector

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingSink struct {
	mu     sync.Mutex
	frames []domain.AnnotatedFrame
}

func (s *collectingSink) PushAnnotatedFrame(frame domain.AnnotatedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func TestStreamConsumerForwardsFramesToSink(t *testing.T) {
	sink := &collectingSink{}
	c := NewStreamConsumer("ws://unused", ReconnectPolicy{}, sink)

	frame := domain.AnnotatedFrame{
		Type:        "annotated_frame",
		FrameNumber: 42,
		SentAt:      float64(time.Now().Unix()),
		ImageBase64: "aGVsbG8=",
	}
	payload, _ := json.Marshal(frame)
	require.NoError(t, c.HandleDetectorMessage(context.Background(), payload))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.frames, 1)
	assert.Equal(t, int64(42), sink.frames[0].FrameNumber)
	assert.Equal(t, "aGVsbG8=", sink.frames[0].ImageBase64)
}

func TestStreamConsumerDropsUndecodableFrame(t *testing.T) {
	sink := &collectingSink{}
	c := NewStreamConsumer("ws://unused", ReconnectPolicy{}, sink)

	// JSON hợp lệ nhưng sai schema vẫn decode được về zero values; chỉ
	// payload hỏng hẳn mới bị drop — và drop không phải là lỗi.
	assert.NoError(t, c.HandleDetectorMessage(context.Background(), []byte(`[1,2`)))
	assert.Empty(t, sink.frames)
}

func TestStreamConsumerMetrics(t *testing.T) {
	c := NewStreamConsumer("ws://unused", ReconnectPolicy{}, nil)

	base := time.Now()
	// 10 frame trong đúng một giây => FPS chốt tại 10.
	for i := 0; i < 10; i++ {
		c.recordFrame(base.Add(time.Duration(i)*100*time.Millisecond), 0)
	}
	c.recordFrame(base.Add(time.Second), 0)

	m := c.Metrics()
	assert.InDelta(t, 10.0, m.FramesPerSecond, 0.01)
	assert.Equal(t, int64(11), m.TotalFrames)

	// Latency = thời điểm nhận - sent_at nhúng trong payload.
	received := time.Now()
	c.recordFrame(received, float64(received.Add(-120*time.Millisecond).UnixNano())/float64(time.Second))
	m = c.Metrics()
	assert.InDelta(t, 120.0, m.LatencyMs, 5.0)
}
