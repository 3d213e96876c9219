package domain

import (
	"context"
	"time"
)

// DepositAudit 每次处理留下的审计副本（WebhookResponse 的等价物）
// 处理失败也会留一条，applied 标记是否真的动了余额。
// tx_id 上的唯一索引是幂等的最终防线：同一笔链上交易最多入账一次。
type DepositAudit struct {
	ID               int64      `gorm:"column:id;primaryKey"`
	EventID          string     `gorm:"column:event_id;index;size:36"`
	AccountID        string     `gorm:"column:account_id;index;size:36"` // 解析失败时为空
	SubscriptionType string     `gorm:"column:subscription_type;size:32"`
	Amount           string     `gorm:"column:amount;size:64"` // decimal string，无金额事件为空
	Currency         string     `gorm:"column:currency;size:16"`
	TxID             *string    `gorm:"column:tx_id;uniqueIndex;size:128"` // NULL 不参与唯一约束
	BlockHeight      int64      `gorm:"column:block_height"`
	FromAddress      string     `gorm:"column:from_address;size:128"`
	ToAddress        string     `gorm:"column:to_address;size:128"`
	ContractAddress  string     `gorm:"column:contract_address;size:128"`
	Applied          bool       `gorm:"column:applied"`
	OccurredAt       *time.Time `gorm:"column:occurred_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
}

func (DepositAudit) TableName() string {
	return "deposit_audits"
}

// AuditRepo 审计记录，去重网关的数据来源
type AuditRepo interface {
	// ExistsByTxID 是否已有同 txId 的审计记录
	ExistsByTxID(ctx context.Context, txID string) (bool, error)
	// CreateAudit 插入审计副本。tx_id 唯一索引冲突时不报错，
	// 返回 inserted=false，调用方按 duplicate 处理。
	CreateAudit(ctx context.Context, audit *DepositAudit) (inserted bool, err error)
}
