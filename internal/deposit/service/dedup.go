package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/logger"
)

const dedupKeyPrefix = "deposit:tx:"

// DedupGate 去重网关
// redis 只是快路径（挡住重试风暴），审计表才是权威——redis 丢了也不会二次入账，
// 最终防线在 deposit_audits 的 tx_id 唯一索引上。
type DedupGate struct {
	audits domain.AuditRepo
	rdb    *redis.Client // 可以为 nil（测试环境），只走 DB
	ttl    time.Duration
}

func NewDedupGate(audits domain.AuditRepo, rdb *redis.Client) *DedupGate {
	return &DedupGate{
		audits: audits,
		rdb:    rdb,
		ttl:    24 * time.Hour,
	}
}

// IsDuplicate 同 txId 是否已经有审计记录
// txId 为空时跳过去重——继承自上游行为，这类事件视为永远新鲜。
// ⚠️ 已知风险：没有 txId 的 address-event 理论上可以重复入账，这里只告警不收紧。
func (g *DedupGate) IsDuplicate(ctx context.Context, txID string) (bool, error) {
	if txID == "" {
		logger.Warn(ctx, "event without txId, dedup skipped")
		return false, nil
	}

	// 快路径：redis 标记
	if g.rdb != nil {
		n, err := g.rdb.Exists(ctx, dedupKeyPrefix+txID).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		// redis 出错不拦路，降级查 DB
	}

	return g.audits.ExistsByTxID(ctx, txID)
}

// MarkSeen 入账成功后打 redis 标记，下次同 txId 不用再查 DB
func (g *DedupGate) MarkSeen(ctx context.Context, txID string) {
	if txID == "" || g.rdb == nil {
		return
	}
	if err := g.rdb.Set(ctx, dedupKeyPrefix+txID, 1, g.ttl).Err(); err != nil {
		logger.Warn(ctx, "set dedup marker failed", zap.String("tx_id", txID), zap.Error(err))
	}
}
