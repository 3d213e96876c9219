package xredis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock 基于 SETNX 的简易分布式锁
// 持有者 id 用于防止别的节点误续期
type Lock struct {
	rdb *redis.Client
	id  string
}

func NewLock(rdb *redis.Client) *Lock {
	id := fmt.Sprintf("%s%d", uuid.NewString(), time.Now().Nanosecond())
	return &Lock{rdb: rdb, id: id}
}

// TryAcquire 尝试抢锁，抢到或已持有返回 true
// ttl 防死锁：持有者挂了锁会自动释放
func (l *Lock) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	success, err := l.rdb.SetNX(ctx, key, l.id, ttl).Result()
	if err != nil {
		return false
	}

	if !success {
		// 抢锁失败，检查锁是不是自己的（用于续期）
		val, _ := l.rdb.Get(ctx, key).Result()
		if val == l.id {
			l.rdb.Expire(ctx, key, ttl)
			return true
		}
	}

	return success
}

// Release 只释放自己持有的锁
func (l *Lock) Release(ctx context.Context, key string) {
	val, _ := l.rdb.Get(ctx, key).Result()
	if val == l.id {
		l.rdb.Del(ctx, key)
	}
}
