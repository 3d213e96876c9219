package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/metrics"
	"coinport.io/pkg/safe"
)

// Job 一条待处理的 webhook 事件
// payload 随任务一起带走，worker 不用回表读原始 body
type Job struct {
	EventID string
	Payload []byte
}

// Config 消费池配置
type Config struct {
	ConsumerCount int // 多少个消费者
	QueueSize     int // 任务通道容量
}

// Pool 有界任务队列 + 固定数量的消费协程
// 接收端已经把事件落库了，这里丢任务不丢数据：队列满时事件留在
// received 状态等人工重放，绝不阻塞请求线程。
type Pool struct {
	cfg    *Config
	jobs   chan Job
	handle func(ctx context.Context, job Job) error
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func New(cfg *Config, handle func(ctx context.Context, job Job) error) *Pool {
	// 对默认的配置进行兜底
	if cfg.ConsumerCount <= 0 {
		cfg.ConsumerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	return &Pool{
		cfg:    cfg,
		jobs:   make(chan Job, cfg.QueueSize),
		handle: handle,
	}
}

// Start 启动消费者，不阻塞调用方
func (p *Pool) Start(ctx context.Context) {
	logger.Info(ctx, "Deposit worker pool start",
		zap.Int("consumers", p.cfg.ConsumerCount),
		zap.Int("queue_size", p.cfg.QueueSize),
	)

	for i := 0; i < p.cfg.ConsumerCount; i++ {
		p.wg.Add(1)
		workerID := i
		safe.Go(func() {
			defer p.wg.Done()
			p.consumer(ctx, workerID)
		})
	}
}

// TryEnqueue 非阻塞投递，队列满返回 false
func (p *Pool) TryEnqueue(job Job) bool {
	select {
	case p.jobs <- job:
		metrics.ProcessQueueDepth.WithLabelValues("deposit-service").Set(float64(len(p.jobs)))
		return true
	default:
		return false
	}
}

// Stop 关闭队列并等所有消费者把剩余任务处理完
func (p *Pool) Stop() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// 消费者代码
// 失败按条捕获：handle 内部已经把错误写回事件记录，这里只记日志，
// 一条失败不影响后面的任务。
func (p *Pool) consumer(ctx context.Context, workerID int) {
	logger.Info(ctx, "👷 Worker started", zap.Int("worker_id", workerID))
	for job := range p.jobs {
		metrics.ProcessQueueDepth.WithLabelValues("deposit-service").Set(float64(len(p.jobs)))
		if err := p.handle(ctx, job); err != nil {
			logger.Error(ctx, "process webhook event failed",
				zap.Int("worker_id", workerID),
				zap.String("event_id", job.EventID),
				zap.Error(err),
			)
			continue
		}
	}
	logger.Info(ctx, "🛑 Worker stopped", zap.Int("worker_id", workerID))
}
