package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/repo/persistence"
	"coinport.io/internal/deposit/worker"
	"coinport.io/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("deposit-service-test", "error")
	os.Exit(m.Run())
}

var eventSeq int64

// 内存库，单连接串行化写入，sqlite 下并发测试不会锁表
func newTestRepo(t *testing.T) *persistence.Repo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := persistence.New(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func newTestProcessor(repo *persistence.Repo) *Processor {
	dedup := NewDedupGate(repo, nil) // 无 redis，全走 DB
	resolver := NewResolver(repo, repo)
	reconciler := NewReconciler(repo, repo, repo)
	return NewProcessor(repo, dedup, resolver, reconciler, nil)
}

func seedAccount(t *testing.T, repo *persistence.Repo, accountID, chain, currency string, walletID int64) {
	t.Helper()
	require.NoError(t, repo.CreateAccount(context.Background(), &domain.VirtualAccount{
		AccountID:     accountID,
		OwnerWalletID: walletID,
		Chain:         chain,
		Currency:      currency,
		Active:        true,
	}))
}

func seedAddress(t *testing.T, repo *persistence.Repo, address, chain, accountID string, walletID int64) {
	t.Helper()
	require.NoError(t, repo.SaveAddress(context.Background(), &domain.DepositAddress{
		Address:       address,
		Chain:         chain,
		AccountID:     accountID,
		Currency:      "ETH",
		OwnerWalletID: walletID,
	}))
}

// 先落原始事件再交给 Processor，模拟接收边界之后的链路
func seedEvent(t *testing.T, repo *persistence.Repo, payload string) worker.Job {
	t.Helper()
	eventID := fmt.Sprintf("evt-%d", atomic.AddInt64(&eventSeq, 1))
	require.NoError(t, repo.CreateEvent(context.Background(), &domain.RawWebhookEvent{
		EventID: eventID,
		Payload: []byte(payload),
	}))
	return worker.Job{EventID: eventID, Payload: []byte(payload)}
}

func accountBalance(t *testing.T, repo *persistence.Repo, accountID string) decimal.Decimal {
	t.Helper()
	account, err := repo.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Balance
}

func eventOutcome(t *testing.T, repo *persistence.Repo, eventID string) *domain.RawWebhookEvent {
	t.Helper()
	event, err := repo.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, event)
	return event
}

func TestProcessor_正常入账(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)
	seedAddress(t, repo, "0xaabbccdd", "ETH", "acct-1", 1)

	job := seedEvent(t, repo, `{
		"subscriptionType": "native-coin-transfer",
		"toAddress": "0xAABBCCDD",
		"amount": "1.5",
		"currency": "eth",
		"txId": "tx-ok-1",
		"blockNumber": 1024
	}`)

	require.NoError(t, p.Process(ctx, job))

	assert.True(t, accountBalance(t, repo, "acct-1").Equal(decimal.RequireFromString("1.5")))

	event := eventOutcome(t, repo, job.EventID)
	assert.True(t, event.Processed)
	assert.Equal(t, domain.OutcomeSuccess, event.Outcome)
	assert.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ErrorMessage)
}

func TestProcessor_重复投递只入账一次(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)
	seedAddress(t, repo, "0xaabbccdd", "ETH", "acct-1", 1)

	payload := `{
		"subscriptionType": "native-coin-transfer",
		"toAddress": "0xaabbccdd",
		"amount": "2",
		"txId": "tx-dup-1"
	}`

	first := seedEvent(t, repo, payload)
	require.NoError(t, p.Process(ctx, first))

	// 对端重投：独立的事件记录，同一个 txId
	second := seedEvent(t, repo, payload)
	require.NoError(t, p.Process(ctx, second))

	// 余额是 B+A，不是 B+2A
	assert.True(t, accountBalance(t, repo, "acct-1").Equal(decimal.RequireFromString("2")))

	assert.Equal(t, domain.OutcomeSuccess, eventOutcome(t, repo, first.EventID).Outcome)
	assert.Equal(t, domain.OutcomeDuplicate, eventOutcome(t, repo, second.EventID).Outcome)
}

func TestProcessor_未登记地址入终态并留审计(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	job := seedEvent(t, repo, `{
		"subscriptionType": "native-coin-transfer",
		"toAddress": "0xdeadbeef",
		"amount": "3",
		"txId": "tx-unknown-1"
	}`)

	require.NoError(t, p.Process(ctx, job))

	event := eventOutcome(t, repo, job.EventID)
	assert.True(t, event.Processed)
	assert.Equal(t, domain.OutcomeError, event.Outcome)
	assert.NotEmpty(t, event.ErrorMessage)

	// 失败也要留审计副本，applied=false
	exists, err := repo.ExistsByTxID(ctx, "tx-unknown-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcessor_非转账事件不按地址解析(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	job := seedEvent(t, repo, `{
		"subscriptionType": "address-event",
		"address": "0xaabbccdd",
		"txId": "tx-addr-evt-1"
	}`)

	require.NoError(t, p.Process(ctx, job))
	assert.Equal(t, domain.OutcomeError, eventOutcome(t, repo, job.EventID).Outcome)
}

func TestProcessor_显式账户事件无金额只留痕(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)

	job := seedEvent(t, repo, `{
		"subscriptionType": "address-event",
		"accountId": "acct-1",
		"txId": "tx-noop-1"
	}`)

	require.NoError(t, p.Process(ctx, job))

	assert.Equal(t, domain.OutcomeSuccess, eventOutcome(t, repo, job.EventID).Outcome)
	assert.True(t, accountBalance(t, repo, "acct-1").IsZero())
}

func TestProcessor_缺txId跳过去重(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)
	seedAddress(t, repo, "0xaabbccdd", "ETH", "acct-1", 1)

	payload := `{
		"subscriptionType": "native-coin-transfer",
		"toAddress": "0xaabbccdd",
		"amount": "1"
	}`

	// 没有 txId 的事件永远"新鲜"，两次都会入账（继承的已知行为）
	require.NoError(t, p.Process(ctx, seedEvent(t, repo, payload)))
	require.NoError(t, p.Process(ctx, seedEvent(t, repo, payload)))

	assert.True(t, accountBalance(t, repo, "acct-1").Equal(decimal.RequireFromString("2")))
}

func TestProcessor_负金额拒绝(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)
	seedAddress(t, repo, "0xaabbccdd", "ETH", "acct-1", 1)

	job := seedEvent(t, repo, `{
		"subscriptionType": "native-coin-transfer",
		"toAddress": "0xaabbccdd",
		"amount": "-5",
		"txId": "tx-neg-1"
	}`)

	require.NoError(t, p.Process(ctx, job))

	assert.Equal(t, domain.OutcomeError, eventOutcome(t, repo, job.EventID).Outcome)
	assert.True(t, accountBalance(t, repo, "acct-1").IsZero())
}

func TestProcessor_解析失败写错误终态(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	job := seedEvent(t, repo, `{"subscriptionType": "totally-unknown"}`)
	require.NoError(t, p.Process(ctx, job))

	event := eventOutcome(t, repo, job.EventID)
	assert.Equal(t, domain.OutcomeError, event.Outcome)
	assert.Contains(t, event.ErrorMessage, "subscriptionType")
}

func TestProcessor_并发同账户不丢入账(t *testing.T) {
	repo := newTestRepo(t)
	p := newTestProcessor(repo)
	ctx := context.Background()

	seedAccount(t, repo, "acct-1", "ETH", "ETH", 1)
	seedAddress(t, repo, "0xaabbccdd", "ETH", "acct-1", 1)

	const n = 10
	jobs := make([]worker.Job, 0, n)
	for i := 0; i < n; i++ {
		jobs = append(jobs, seedEvent(t, repo, fmt.Sprintf(`{
			"subscriptionType": "native-coin-transfer",
			"toAddress": "0xaabbccdd",
			"amount": "1",
			"txId": "tx-con-%d"
		}`, i)))
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job worker.Job) {
			defer wg.Done()
			assert.NoError(t, p.Process(ctx, job))
		}(job)
	}
	wg.Wait()

	// 10 笔不同 txId 并发入账，一笔都不能丢
	assert.True(t, accountBalance(t, repo, "acct-1").Equal(decimal.NewFromInt(n)))
}
