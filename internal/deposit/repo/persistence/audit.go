package persistence

import (
	"context"
	"fmt"

	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/xerr"
	"gorm.io/gorm/clause"
)

// ========== AuditRepo 接口实现 ==========

// ExistsByTxID 去重查询：是否已有同 txId 的审计记录
func (r *Repo) ExistsByTxID(ctx context.Context, txID string) (bool, error) {
	if txID == "" {
		return false, nil
	}
	var count int64
	err := r.getDb(ctx).WithContext(ctx).Model(&domain.DepositAudit{}).
		Where("tx_id = ?", txID).
		Count(&count).Error
	if err != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("count audits by tx failed: %v", err))
	}
	return count > 0, nil
}

// CreateAudit 插入审计副本（幂等性核心）
// tx_id 唯一索引 + OnConflict DoNothing：同一笔交易并发重投时只有一条能插进去，
// RowsAffected=0 的那条按 duplicate 处理，绝不二次入账。
func (r *Repo) CreateAudit(ctx context.Context, audit *domain.DepositAudit) (bool, error) {
	res := r.getDb(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(audit)

	if res.Error != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("create deposit audit failed: %v", res.Error))
	}
	return res.RowsAffected > 0, nil
}
