package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/xerr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ========== AddressRepo 接口实现 ==========

// SaveAddress 幂等保存地址登记
// 唯一索引冲突时忽略 (INSERT IGNORE)，防止重复点击/重试报错
func (r *Repo) SaveAddress(ctx context.Context, addr *domain.DepositAddress) error {
	addr.Address = strings.ToLower(addr.Address)
	err := r.getDb(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(addr).Error

	if err != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("save deposit address failed: %v", err))
	}
	return nil
}

// FindByAddress 大小写不敏感查地址
// 入库已统一小写，查询把输入转小写即可命中索引
func (r *Repo) FindByAddress(ctx context.Context, address string) (*domain.DepositAddress, error) {
	var addr domain.DepositAddress
	err := r.getDb(ctx).WithContext(ctx).
		Where("address = ?", strings.ToLower(address)).
		Order("id ASC").
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没找到
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("find address failed: %v", err))
	}
	return &addr, nil
}

// FindByAccount 账户在某条链上已有的地址
func (r *Repo) FindByAccount(ctx context.Context, accountID string, chain string) (*domain.DepositAddress, error) {
	var addr domain.DepositAddress
	err := r.getDb(ctx).WithContext(ctx).
		Where("account_id = ? AND chain = ?", accountID, chain).
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("find account address failed: %v", err))
	}
	return &addr, nil
}

// FindWalletAddress 钱包在某条链上任意已有地址（取最早生成的一个）
func (r *Repo) FindWalletAddress(ctx context.Context, walletID int64, chain string) (*domain.DepositAddress, error) {
	var addr domain.DepositAddress
	err := r.getDb(ctx).WithContext(ctx).
		Where("owner_wallet_id = ? AND chain = ?", walletID, chain).
		Order("id ASC").
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("find wallet address failed: %v", err))
	}
	return &addr, nil
}

// NextDerivationIndex 领取下一个派生下标
// 游标行 Upsert + 读回：必须在事务里调用，否则并发开户会拿到同一个下标
func (r *Repo) NextDerivationIndex(ctx context.Context, walletID int64, chain string) (int, error) {
	db := r.getDb(ctx).WithContext(ctx)

	cursor := domain.WalletCursor{
		OwnerWalletID: walletID,
		Chain:         chain,
		NextIndex:     1, // 新钱包：本次发 0，下一个是 1
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_wallet_id"}, {Name: "chain"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"next_index": gorm.Expr("next_index + 1"),
		}),
	}).Create(&cursor).Error
	if err != nil {
		return 0, xerr.New(xerr.DbError, fmt.Sprintf("bump derivation cursor failed: %v", err))
	}

	// 读回自增后的值，发出去的下标 = next_index - 1
	var current domain.WalletCursor
	err = db.Where("owner_wallet_id = ? AND chain = ?", walletID, chain).
		First(&current).Error
	if err != nil {
		return 0, xerr.New(xerr.DbError, fmt.Sprintf("read derivation cursor failed: %v", err))
	}
	return current.NextIndex - 1, nil
}
