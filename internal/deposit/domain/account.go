package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// VirtualAccount 虚拟账户，每个 (用户钱包, 链, 币种) 一条
// 余额只允许 Reconciler (充值) 和提现/转账模块改，不变量：balance >= 0
type VirtualAccount struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	AccountID     string          `gorm:"column:account_id;uniqueIndex;size:36"` // 对外稳定 id
	OwnerWalletID int64           `gorm:"column:owner_wallet_id;index"`
	Chain         string          `gorm:"column:chain;size:16"`
	Currency      string          `gorm:"column:currency;size:16"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(36,18);default:0"`
	Frozen        bool            `gorm:"column:frozen"`
	Active        bool            `gorm:"column:active;default:true"`
	Version       int64           `gorm:"column:version;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (VirtualAccount) TableName() string {
	return "virtual_accounts"
}

// AccountRepo 虚拟账户存储
type AccountRepo interface {
	CreateAccount(ctx context.Context, account *VirtualAccount) error
	// GetAccount 按对外 id 查，没找到返回 nil, nil
	GetAccount(ctx context.Context, accountID string) (*VirtualAccount, error)
	// CreditBalance 原子加钱：balance = balance + amount，version 自增
	// 同账户并发入账靠这条 UPDATE 的行锁串行化；账户不存在返回 ErrMissingAccount
	CreditBalance(ctx context.Context, accountID string, amount decimal.Decimal) error
}
