package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/logger"
)

// Resolver 把充值通知映射到虚拟账户
type Resolver struct {
	addresses domain.AddressRepo
	accounts  domain.AccountRepo
}

func NewResolver(addresses domain.AddressRepo, accounts domain.AccountRepo) *Resolver {
	return &Resolver{
		addresses: addresses,
		accounts:  accounts,
	}
}

// Resolve 解析出入账账户，并回填 n.AccountID / n.Currency
// 规则：
//  1. 回调显式带 accountId 就直接用，跳过地址查找
//  2. 只有 native-coin-transfer / token-transfer 允许按地址解析
//  3. 候选地址 toAddress -> address 兜底，统一小写
//  4. 登记表里查不到就是硬失败，事件留痕但不入账
//  5. 命中后币种以登记表为准，事件自报的 currency 不可信
func (s *Resolver) Resolve(ctx context.Context, n *domain.DepositNotification) (*domain.VirtualAccount, error) {
	// 1. 显式账户
	if n.AccountID != "" {
		account, err := s.accounts.GetAccount(ctx, n.AccountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, domain.ErrMissingAccount
		}
		n.Currency = account.Currency
		return account, nil
	}

	// 2. 分类：address-event 没带 accountId 直接拒绝
	if n.Kind != domain.KindNativeTransfer && n.Kind != domain.KindTokenTransfer {
		return nil, domain.ErrUnresolvable
	}

	// 3. 候选地址
	candidate := strings.ToLower(strings.TrimSpace(n.ToAddress))
	if candidate == "" {
		return nil, domain.ErrMissingAddress
	}

	// 4. 查登记表
	addr, err := s.addresses.FindByAddress(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		logger.Warn(ctx, "充值地址未登记", zap.String("address", candidate))
		return nil, domain.ErrUnknownAddress
	}

	account, err := s.accounts.GetAccount(ctx, addr.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		// 登记表指向的账户不存在，数据不一致，按账户缺失处理
		return nil, domain.ErrMissingAccount
	}

	// 5. 采用解析结果
	n.AccountID = account.AccountID
	n.Currency = account.Currency
	return account, nil
}
