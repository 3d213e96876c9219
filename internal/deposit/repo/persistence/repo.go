package persistence

import (
	"context"

	"coinport.io/internal/deposit/domain"
	"gorm.io/gorm"
)

// ctx 里携带事务对象的 key
type txKey struct{}

// Repo 聚合仓储，一个 gorm.DB 实现全部接口
type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// 确保 Repo 实现了所有接口
var (
	_ domain.EventRepo   = (*Repo)(nil)
	_ domain.AddressRepo = (*Repo)(nil)
	_ domain.AccountRepo = (*Repo)(nil)
	_ domain.AuditRepo   = (*Repo)(nil)
	_ domain.Tx          = (*Repo)(nil)
)

// Transaction 实现事务，把 tx 注入到 context 往下传
func (r *Repo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

// getDb 如果 context 里有事务对象，就用事务对象
func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

// AutoMigrate 建表（开发/测试环境用，线上走 SQL 迁移）
func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(
		&domain.RawWebhookEvent{},
		&domain.DepositAudit{},
		&domain.DepositAddress{},
		&domain.WalletCursor{},
		&domain.VirtualAccount{},
	)
}
