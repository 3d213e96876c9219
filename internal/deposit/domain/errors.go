package domain

import (
	"context"
	"errors"
)

// 流水线错误分类，见各环节注释
// 这些错误都发生在 200 已经返回之后，只会被写进事件的 error_message
var (
	ErrMissingAddress   = errors.New("missing address: event carries no usable deposit address")
	ErrUnknownAddress   = errors.New("unknown address: address not found in deposit address registry")
	ErrMissingAccount   = errors.New("missing account: accountId does not resolve to a virtual account")
	ErrInsufficientData = errors.New("insufficient data: amount or currency missing for mutation")

	// ErrDuplicateTx 不是故障：同一 txId 第二次出现属于正常 no-op
	ErrDuplicateTx = errors.New("duplicate transaction id")

	// ErrUnresolvable address-event 又没带 accountId，按设计直接拒绝
	ErrUnresolvable = errors.New("address-event without accountId is not resolvable")
)

// Tx 事务边界，聚合仓储实现；fn 里的 ctx 带着事务对象往下传
type Tx interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
