package domain

import (
	"context"
	"time"
)

// ChainInfo 链能力登记表
// DerivesAddresses=false 的链（没有 xpub 派生）同一钱包的地址在账户间复用，
// 不是按链名字符串集合特判。集合是封闭的：不在表里的链不允许开户。
type ChainInfo struct {
	Name             string
	NativeCurrency   string
	DerivesAddresses bool
}

var chainRegistry = map[string]ChainInfo{
	"ETH":   {Name: "ETH", NativeCurrency: "ETH", DerivesAddresses: true},
	"BSC":   {Name: "BSC", NativeCurrency: "BNB", DerivesAddresses: true},
	"MATIC": {Name: "MATIC", NativeCurrency: "MATIC", DerivesAddresses: true},
	"SOL":   {Name: "SOL", NativeCurrency: "SOL", DerivesAddresses: false},
	"XLM":   {Name: "XLM", NativeCurrency: "XLM", DerivesAddresses: false},
	"XRP":   {Name: "XRP", NativeCurrency: "XRP", DerivesAddresses: false},
}

// LookupChain 查询链能力，未登记的链返回 false
func LookupChain(name string) (ChainInfo, bool) {
	c, ok := chainRegistry[name]
	return c, ok
}

// DepositAddress 充值地址登记
// 地址统一小写入库，(chain, address) 只属于一个钱包，但同一钱包下
// 可以链接到多个虚拟账户（无 xpub 链的复用场景）。
type DepositAddress struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	Address         string    `gorm:"column:address;uniqueIndex:idx_chain_addr_acct;size:128"`
	Chain           string    `gorm:"column:chain;uniqueIndex:idx_chain_addr_acct;size:16"`
	AccountID       string    `gorm:"column:account_id;uniqueIndex:idx_chain_addr_acct;size:36"`
	Currency        string    `gorm:"column:currency;size:16"`
	OwnerWalletID   int64     `gorm:"column:owner_wallet_id;index"`
	DerivationIndex int       `gorm:"column:derivation_index"`
	DerivationPath  string    `gorm:"column:derivation_path;size:64"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (DepositAddress) TableName() string {
	return "deposit_addresses"
}

// WalletCursor 每个 (wallet, chain) 的下一个派生下标，单调递增，永不复用
type WalletCursor struct {
	OwnerWalletID int64  `gorm:"column:owner_wallet_id;uniqueIndex:idx_wallet_chain"`
	Chain         string `gorm:"column:chain;uniqueIndex:idx_wallet_chain;size:16"`
	NextIndex     int    `gorm:"column:next_index"`
}

func (WalletCursor) TableName() string {
	return "wallet_cursors"
}

// AddressRepo 充值地址登记表
type AddressRepo interface {
	// SaveAddress 幂等保存（唯一索引冲突时忽略），address 必须已小写
	SaveAddress(ctx context.Context, addr *DepositAddress) error
	// FindByAddress 大小写不敏感查找，没找到返回 nil, nil
	FindByAddress(ctx context.Context, address string) (*DepositAddress, error)
	// FindByAccount 账户在某条链上已有的地址，没找到返回 nil, nil
	FindByAccount(ctx context.Context, accountID string, chain string) (*DepositAddress, error)
	// FindWalletAddress 钱包在某条链上任意已有地址（无 xpub 链复用），没找到返回 nil, nil
	FindWalletAddress(ctx context.Context, walletID int64, chain string) (*DepositAddress, error)
	// NextDerivationIndex 领取下一个派生下标，从 0 开始，必须在事务里调用
	NextDerivationIndex(ctx context.Context, walletID int64, chain string) (int, error)
}
