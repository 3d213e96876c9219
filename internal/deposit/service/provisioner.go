package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/xerr"
	"coinport.io/pkg/xredis"
)

// ProvisionedAddress 开出来的充值地址
type ProvisionedAddress struct {
	Address         string `json:"address"`
	Chain           string `json:"chain"`
	DerivationIndex int    `json:"derivationIndex"`
	DerivationPath  string `json:"derivationPath"`
	Reused          bool   `json:"reused"`
}

// Provisioner 充值地址开通
// 同一 (账户) 重复调用返回同一个地址；无 xpub 派生的链上，
// 同一钱包的后续账户复用第一个地址，有派生的链按序领新下标。
type Provisioner struct {
	tx        domain.Tx
	addresses domain.AddressRepo
	accounts  domain.AccountRepo
	rdb       *redis.Client // 可为 nil，单实例部署不需要跨节点互斥
}

func NewProvisioner(tx domain.Tx, addresses domain.AddressRepo, accounts domain.AccountRepo, rdb *redis.Client) *Provisioner {
	return &Provisioner{
		tx:        tx,
		addresses: addresses,
		accounts:  accounts,
		rdb:       rdb,
	}
}

// GetOrCreateAddress 为账户开通（或取回）充值地址，幂等
func (s *Provisioner) GetOrCreateAddress(ctx context.Context, accountID string) (*ProvisionedAddress, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrMissingAccount
	}

	chain, ok := domain.LookupChain(account.Chain)
	if !ok {
		// 链登记表是封闭集合，不认识的链一律拒绝
		return nil, xerr.New(xerr.RequestParamsError, fmt.Sprintf("unsupported chain %q", account.Chain))
	}

	// 幂等：这个账户已经开过就直接还回去
	existing, err := s.addresses.FindByAccount(ctx, accountID, chain.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ProvisionedAddress{
			Address:         existing.Address,
			Chain:           existing.Chain,
			DerivationIndex: existing.DerivationIndex,
			DerivationPath:  existing.DerivationPath,
			Reused:          true,
		}, nil
	}

	// 跨实例互斥：两个节点同时给一个账户开通时只放一个进去，
	// 抢不到锁说明另一个请求正在开，让调用方稍后重试（反正幂等）
	if s.rdb != nil {
		lock := xredis.NewLock(s.rdb)
		lockKey := "provision:acct:" + accountID
		if !lock.TryAcquire(ctx, lockKey, 10*time.Second) {
			return nil, xerr.New(xerr.ServerCommonError, "address provisioning in progress, retry later")
		}
		defer lock.Release(ctx, lockKey)
	}

	var result *ProvisionedAddress
	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if !chain.DerivesAddresses {
			// 无 xpub 派生：复用钱包在这条链上已有的地址
			walletAddr, err := s.addresses.FindWalletAddress(txCtx, account.OwnerWalletID, chain.Name)
			if err != nil {
				return err
			}
			if walletAddr != nil {
				linked := &domain.DepositAddress{
					Address:         walletAddr.Address,
					Chain:           chain.Name,
					AccountID:       accountID,
					Currency:        account.Currency,
					OwnerWalletID:   account.OwnerWalletID,
					DerivationIndex: walletAddr.DerivationIndex,
					DerivationPath:  walletAddr.DerivationPath,
				}
				if err := s.addresses.SaveAddress(txCtx, linked); err != nil {
					return err
				}
				result = &ProvisionedAddress{
					Address:         linked.Address,
					Chain:           chain.Name,
					DerivationIndex: linked.DerivationIndex,
					DerivationPath:  linked.DerivationPath,
					Reused:          true,
				}
				return nil
			}
			// 钱包第一次上这条链，生成一个固定地址（下标恒为 0）
			address, err := generateAddress(chain)
			if err != nil {
				return err
			}
			return s.saveFresh(txCtx, account, chain, address, 0, &result)
		}

		// 有派生能力：领取下一个下标，单调递增、永不复用
		idx, err := s.addresses.NextDerivationIndex(txCtx, account.OwnerWalletID, chain.Name)
		if err != nil {
			return err
		}
		address, err := generateAddress(chain)
		if err != nil {
			return err
		}
		return s.saveFresh(txCtx, account, chain, address, idx, &result)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "✅ 充值地址开通",
		zap.String("account_id", accountID),
		zap.String("chain", chain.Name),
		zap.String("address", result.Address),
		zap.Bool("reused", result.Reused),
	)
	return result, nil
}

func (s *Provisioner) saveFresh(ctx context.Context, account *domain.VirtualAccount,
	chain domain.ChainInfo, address string, idx int, out **ProvisionedAddress) error {

	path := fmt.Sprintf("m/44'/60'/0'/0/%d", idx)
	addr := &domain.DepositAddress{
		Address:         address,
		Chain:           chain.Name,
		AccountID:       account.AccountID,
		Currency:        account.Currency,
		OwnerWalletID:   account.OwnerWalletID,
		DerivationIndex: idx,
		DerivationPath:  path,
	}
	if err := s.addresses.SaveAddress(ctx, addr); err != nil {
		return err
	}
	*out = &ProvisionedAddress{
		Address:         addr.Address,
		Chain:           chain.Name,
		DerivationIndex: idx,
		DerivationPath:  path,
		Reused:          false,
	}
	return nil
}

// generateAddress 地址桩：随机 32 字节过一遍 Keccak256 取后 20 字节
// 真实的 BIP32 派生在独立的密钥服务里做，这里只保证格式上像一个链上地址
func generateAddress(chain domain.ChainInfo) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate address entropy: %w", err)
	}
	sum := ethcrypto.Keccak256(buf)
	body := hex.EncodeToString(sum[12:])

	if chain.DerivesAddresses {
		return "0x" + body, nil // EVM 风格
	}
	return body, nil
}
