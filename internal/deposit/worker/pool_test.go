package worker

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"coinport.io/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("worker-test", "error")
	os.Exit(m.Run())
}

func TestPool_消费完队列里的任务(t *testing.T) {
	var processed int64
	p := New(&Config{ConsumerCount: 3, QueueSize: 64}, func(ctx context.Context, job Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	p.Start(context.Background())

	for i := 0; i < 50; i++ {
		require.True(t, p.TryEnqueue(Job{EventID: "evt"}))
	}

	// Stop 关闭队列并等消费者清空剩余任务
	p.Stop()
	assert.Equal(t, int64(50), atomic.LoadInt64(&processed))
}

func TestPool_队列满时拒绝不阻塞(t *testing.T) {
	p := New(&Config{ConsumerCount: 1, QueueSize: 2}, func(ctx context.Context, job Job) error {
		return nil
	})
	// 不启动消费者，队列只进不出

	assert.True(t, p.TryEnqueue(Job{EventID: "a"}))
	assert.True(t, p.TryEnqueue(Job{EventID: "b"}))
	assert.False(t, p.TryEnqueue(Job{EventID: "c"}))
}

func TestPool_单条失败不影响后续(t *testing.T) {
	var processed int64
	p := New(&Config{ConsumerCount: 1, QueueSize: 8}, func(ctx context.Context, job Job) error {
		if job.EventID == "boom" {
			return assert.AnError
		}
		atomic.AddInt64(&processed, 1)
		return nil
	})
	p.Start(context.Background())

	require.True(t, p.TryEnqueue(Job{EventID: "ok-1"}))
	require.True(t, p.TryEnqueue(Job{EventID: "boom"}))
	require.True(t, p.TryEnqueue(Job{EventID: "ok-2"}))

	p.Stop()
	assert.Equal(t, int64(2), atomic.LoadInt64(&processed))
}
