package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/xerr"
)

const balanceKeyPrefix = "balance:"

// AccountBalance 余额查询结果
type AccountBalance struct {
	AccountID string          `json:"accountId"`
	Chain     string          `json:"chain"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Frozen    bool            `json:"frozen"`
}

// BalanceService 余额读路径
// redis 缓存 + singleflight：同一个账户 cache miss 时只放一个查询打到 DB
type BalanceService struct {
	accounts domain.AccountRepo
	rdb      *redis.Client // 可为 nil，直接穿透到 DB
	sf       singleflight.Group
}

func NewBalanceService(accounts domain.AccountRepo, rdb *redis.Client) *BalanceService {
	return &BalanceService{
		accounts: accounts,
		rdb:      rdb,
	}
}

func (s *BalanceService) GetBalance(ctx context.Context, accountID string) (*AccountBalance, error) {
	key := balanceKeyPrefix + accountID

	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	// 防击穿：同一时刻只有一个 goroutine 去 DB
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// double-check
		if cached := s.fromCache(ctx, key); cached != nil {
			return cached, nil
		}

		account, err := s.accounts.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, xerr.NewErrCode(xerr.RecordNotFound)
		}

		balance := &AccountBalance{
			AccountID: account.AccountID,
			Chain:     account.Chain,
			Currency:  account.Currency,
			Balance:   account.Balance,
			Frozen:    account.Frozen,
		}
		s.toCache(ctx, key, balance)
		return balance, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AccountBalance), nil
}

// Invalidate 入账之后删缓存（延迟双删，清掉旧读回填）
func (s *BalanceService) Invalidate(ctx context.Context, accountID string) {
	if s.rdb == nil {
		return
	}
	key := balanceKeyPrefix + accountID
	s.rdb.Del(ctx, key)

	time.AfterFunc(500*time.Millisecond, func() {
		s.rdb.Del(context.Background(), key)
	})
}

func (s *BalanceService) fromCache(ctx context.Context, key string) *AccountBalance {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var balance AccountBalance
	if err := json.Unmarshal(raw, &balance); err != nil {
		return nil
	}
	return &balance
}

func (s *BalanceService) toCache(ctx context.Context, key string, balance *AccountBalance) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(balance)
	if err != nil {
		return
	}
	// 防雪崩：TTL 打散
	ttl := time.Duration(30+rand.Intn(30)) * time.Second
	s.rdb.Set(ctx, key, raw, ttl)
}
