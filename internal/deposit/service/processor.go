package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/worker"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/metrics"
)

// Processor 异步处理链路：解析 → 去重 → 解析账户 → 入账 → 写终态
// 全程不再跟 HTTP 调用方打交道，结果只落在事件记录上。
type Processor struct {
	events     domain.EventRepo
	dedup      *DedupGate
	resolver   *Resolver
	reconciler *Reconciler
	balances   *BalanceService // 入账成功后删缓存，可为 nil
}

func NewProcessor(events domain.EventRepo, dedup *DedupGate, resolver *Resolver,
	reconciler *Reconciler, balances *BalanceService) *Processor {
	return &Processor{
		events:     events,
		dedup:      dedup,
		resolver:   resolver,
		reconciler: reconciler,
		balances:   balances,
	}
}

// Process 消费池的 handler，一条事件一次调用
// 业务失败（地址未知等）写进事件终态后返回 nil——对池子来说已经"处理完"；
// 返回非 nil 只代表连终态都没写进去，事件保持 received 等人工重放。
func (p *Processor) Process(ctx context.Context, job worker.Job) error {
	n, err := domain.ParseNotification(job.Payload)
	if err != nil {
		return p.fail(ctx, job.EventID, err)
	}

	// 去重网关：txId 已入账过就是正常 no-op
	dup, err := p.dedup.IsDuplicate(ctx, n.TxID)
	if err != nil {
		return p.fail(ctx, job.EventID, err)
	}
	if dup {
		return p.finish(ctx, job.EventID, domain.OutcomeDuplicate, "")
	}

	account, err := p.resolver.Resolve(ctx, n)
	if err != nil {
		// 解析失败也要留审计副本，事件可追溯
		p.reconciler.RecordFailure(ctx, job.EventID, n)
		return p.fail(ctx, job.EventID, err)
	}

	_, err = p.reconciler.Apply(ctx, job.EventID, n, account)
	if errors.Is(err, domain.ErrDuplicateTx) {
		// 并发重投时输掉插入竞争的那条
		return p.finish(ctx, job.EventID, domain.OutcomeDuplicate, "")
	}
	if err != nil {
		return p.fail(ctx, job.EventID, err)
	}

	p.dedup.MarkSeen(ctx, n.TxID)
	if p.balances != nil {
		p.balances.Invalidate(ctx, account.AccountID)
	}
	return p.finish(ctx, job.EventID, domain.OutcomeSuccess, "")
}

func (p *Processor) finish(ctx context.Context, eventID string, outcome domain.EventOutcome, errMsg string) error {
	if err := p.events.MarkProcessed(ctx, eventID, outcome, errMsg); err != nil {
		return err
	}
	metrics.WebhookOutcomeTotal.WithLabelValues("deposit-service", string(outcome)).Inc()
	if outcome == domain.OutcomeDuplicate {
		logger.Info(ctx, "重复交易，跳过入账", zap.String("event_id", eventID))
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, eventID string, cause error) error {
	logger.Warn(ctx, "webhook event processing failed",
		zap.String("event_id", eventID),
		zap.Error(cause),
	)
	return p.finish(ctx, eventID, domain.OutcomeError, cause.Error())
}
