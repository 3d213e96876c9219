package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/xerr"
	"gorm.io/gorm"
)

// ========== AccountRepo 接口实现 ==========

func (r *Repo) CreateAccount(ctx context.Context, account *domain.VirtualAccount) error {
	err := r.getDb(ctx).WithContext(ctx).Create(account).Error
	if err != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("create account failed: %v", err))
	}
	return nil
}

// GetAccount 按对外 id 查，没找到返回 nil, nil
func (r *Repo) GetAccount(ctx context.Context, accountID string) (*domain.VirtualAccount, error) {
	var account domain.VirtualAccount
	err := r.getDb(ctx).WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没找到
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("get account failed: %v", err))
	}
	return &account, nil
}

// CreditBalance 原子加钱
// 🔥 核心：balance = balance + ? 由数据库行锁串行化，同账户并发入账不会丢更新，
// 不同账户互不阻塞。充值只加不减，所以不会触碰 balance >= 0 的不变量。
func (r *Repo) CreditBalance(ctx context.Context, accountID string, amount decimal.Decimal) error {
	res := r.getDb(ctx).WithContext(ctx).Model(&domain.VirtualAccount{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("credit balance failed: %v", res.Error))
	}
	if res.RowsAffected == 0 {
		return domain.ErrMissingAccount
	}
	return nil
}
