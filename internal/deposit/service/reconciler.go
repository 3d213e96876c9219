package service

import (
	"context"

	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/logger"
)

// Reconciler 入账结算
// 一个事务里做两件事：插审计副本（幂等锚点）+ 原子加钱。
// 任何一步失败整体回滚，不存在"钱加了但没留痕"的中间态。
type Reconciler struct {
	tx       domain.Tx
	audits   domain.AuditRepo
	accounts domain.AccountRepo
}

func NewReconciler(tx domain.Tx, audits domain.AuditRepo, accounts domain.AccountRepo) *Reconciler {
	return &Reconciler{
		tx:       tx,
		audits:   audits,
		accounts: accounts,
	}
}

// Apply 把已解析、非重复的充值落到账户余额上
// 返回 applied=false 表示这是合法的无金额事件，只留审计不动余额。
// 并发重投同一 txId 时审计唯一索引会挡掉后来者，返回 ErrDuplicateTx。
func (s *Reconciler) Apply(ctx context.Context, eventID string, n *domain.DepositNotification, account *domain.VirtualAccount) (bool, error) {
	// 前置校验：金额必须是非负 decimal
	if n.Amount != nil && n.Amount.IsNegative() {
		return false, domain.ErrInsufficientData
	}

	audit := buildAudit(eventID, n)
	audit.AccountID = account.AccountID
	audit.Applied = n.Amount != nil

	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		inserted, err := s.audits.CreateAudit(txCtx, audit)
		if err != nil {
			return err
		}
		if !inserted {
			// 两个 worker 同时处理同一 txId，输掉的这个按 duplicate 走
			return domain.ErrDuplicateTx
		}

		if n.Amount == nil {
			// 纯地址事件：只更新审计状态，不动余额
			return nil
		}
		return s.accounts.CreditBalance(txCtx, account.AccountID, *n.Amount)
	})
	if err != nil {
		return false, err
	}

	if n.Amount != nil {
		logger.Info(ctx, "✅ 入账成功",
			zap.String("account_id", account.AccountID),
			zap.String("amount", n.Amount.String()),
			zap.String("currency", n.Currency),
			zap.String("tx_id", n.TxID),
		)
	}
	return n.Amount != nil, nil
}

// RecordFailure 解析/入账失败时也要留一条审计副本（applied=false），
// 保证每个事件都能在审计表里追溯到。尽力而为，失败只记日志。
func (s *Reconciler) RecordFailure(ctx context.Context, eventID string, n *domain.DepositNotification) {
	audit := buildAudit(eventID, n)
	audit.Applied = false
	audit.AccountID = n.AccountID

	if _, err := s.audits.CreateAudit(ctx, audit); err != nil {
		logger.Error(ctx, "record failure audit failed",
			zap.String("event_id", eventID), zap.Error(err))
	}
}

func buildAudit(eventID string, n *domain.DepositNotification) *domain.DepositAudit {
	audit := &domain.DepositAudit{
		EventID:          eventID,
		SubscriptionType: string(n.Kind),
		Currency:         n.Currency,
		BlockHeight:      n.BlockHeight,
		FromAddress:      n.FromAddress,
		ToAddress:        n.ToAddress,
		ContractAddress:  n.ContractAddress,
	}
	if n.Amount != nil {
		audit.Amount = n.Amount.String()
	}
	if n.TxID != "" {
		txID := n.TxID
		audit.TxID = &txID
	}
	if !n.OccurredAt.IsZero() {
		occurredAt := n.OccurredAt
		audit.OccurredAt = &occurredAt
	}
	return audit
}
