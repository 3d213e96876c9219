package service

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/worker"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/metrics"
)

// Receiver 接收边界：同步落库，异步处理
// 索引服务要的是快速 ack，非 2xx 或超时都会触发它重投，
// 所以这里只保证"事件存下来了"，处理结果从不同步返回。
type Receiver struct {
	events domain.EventRepo
	pool   *worker.Pool
}

func NewReceiver(events domain.EventRepo, pool *worker.Pool) *Receiver {
	return &Receiver{
		events: events,
		pool:   pool,
	}
}

// Receive 持久化原始事件并调度异步处理
// 只有落库失败才返回 error（上层回 500，等对端重投）
func (s *Receiver) Receive(ctx context.Context, payload []byte, headers http.Header,
	sourceIP, userAgent string) (*domain.RawWebhookEvent, error) {

	headerBytes, _ := json.Marshal(headers)

	event := &domain.RawWebhookEvent{
		EventID:   uuid.NewString(),
		Payload:   payload,
		Headers:   string(headerBytes),
		SourceIP:  sourceIP,
		UserAgent: userAgent,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		metrics.WebhookReceivedTotal.WithLabelValues("deposit-service", "persist_failed").Inc()
		return nil, err
	}
	metrics.WebhookReceivedTotal.WithLabelValues("deposit-service", "accepted").Inc()

	// 事件已经是持久的，队列满只是延迟处理：留在 received 状态等人工重放
	if !s.pool.TryEnqueue(worker.Job{EventID: event.EventID, Payload: payload}) {
		logger.Warn(ctx, "⚠️ 处理队列已满，事件留待人工重放",
			zap.String("event_id", event.EventID),
		)
	}

	return event, nil
}
