package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

// 订阅类型，来自链上索引服务的回调
type SubscriptionKind string

const (
	KindNativeTransfer SubscriptionKind = "native-coin-transfer"
	KindTokenTransfer  SubscriptionKind = "token-transfer"
	KindAddressEvent   SubscriptionKind = "address-event"
)

// webhookPayload 对端回调的 wire 格式
// 字段都按可缺省处理，缺什么在流水线里再决定是不是错误
type webhookPayload struct {
	SubscriptionType string `json:"subscriptionType"`
	AccountID        string `json:"accountId"`
	Address          string `json:"address"`
	ToAddress        string `json:"toAddress"`
	CounterAddress   string `json:"counterAddress"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	TxID             string `json:"txId"`
	BlockNumber      int64  `json:"blockNumber"`
	BlockHash        string `json:"blockHash"`
	ContractAddress  string `json:"contractAddress"`
	Timestamp        int64  `json:"timestamp"` // unix 秒
}

// DepositNotification 解析后的充值通知（不单独落库，审计副本见 DepositAudit）
type DepositNotification struct {
	AccountID       string // 回调里显式带的账户 id，可能为空，等 Resolver 填
	Kind            SubscriptionKind
	Amount          *decimal.Decimal // nil = 纯地址事件，没有金额
	Currency        string           // 注意：入账以地址登记表的币种为准，不信任这里
	TxID            string
	BlockHeight     int64
	BlockHash       string
	FromAddress     string
	ToAddress       string
	ContractAddress string
	OccurredAt      time.Time
}

// ParseNotification 解析原始 payload
// 只做语法检查，业务校验（地址/账户/金额缺失）留给后面的环节
func ParseNotification(payload []byte) (*DepositNotification, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	kind := SubscriptionKind(p.SubscriptionType)
	switch kind {
	case KindNativeTransfer, KindTokenTransfer, KindAddressEvent:
	default:
		return nil, fmt.Errorf("unknown subscriptionType %q", p.SubscriptionType)
	}

	n := &DepositNotification{
		AccountID:       p.AccountID,
		Kind:            kind,
		Currency:        strings.ToUpper(p.Currency),
		TxID:            p.TxID,
		BlockHeight:     p.BlockNumber,
		BlockHash:       p.BlockHash,
		FromAddress:     p.CounterAddress,
		ToAddress:       p.ToAddress,
		ContractAddress: p.ContractAddress,
	}
	// toAddress 缺省时回退到通用 address 字段
	if n.ToAddress == "" {
		n.ToAddress = p.Address
	}
	if p.Timestamp > 0 {
		n.OccurredAt = time.Unix(p.Timestamp, 0).UTC()
	}

	if p.Amount != "" {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", p.Amount, err)
		}
		n.Amount = &amount
	}

	return n, nil
}
