package domain

import (
	"context"
	"time"
)

// 事件终态。三种终态都会置 processed=true，只有 error 额外带 error_message。
type EventOutcome string

const (
	OutcomeNone      EventOutcome = ""             // 尚未处理 (received)
	OutcomeSuccess   EventOutcome = "success"      // 正常入账 (或合法的无金额事件)
	OutcomeDuplicate EventOutcome = "duplicate_tx" // txId 已入账过，正常 no-op
	OutcomeError     EventOutcome = "error"        // 处理失败，等待人工重放
)

// RawWebhookEvent 原始 webhook 事件
// 收到请求先原样落库，任何解析/入账都在这之后。只追加，不删除。
type RawWebhookEvent struct {
	ID           int64        `gorm:"column:id;primaryKey"`
	EventID      string       `gorm:"column:event_id;uniqueIndex;size:36"` // 对外 id，入库时生成
	Payload      []byte       `gorm:"column:payload;type:blob"`            // 原始 body，原样保存
	Headers      string       `gorm:"column:headers;type:text"`           // 收到的 header (JSON)
	SourceIP     string       `gorm:"column:source_ip;size:64"`
	UserAgent    string       `gorm:"column:user_agent;size:256"`
	Processed    bool         `gorm:"column:processed;index"`
	ProcessedAt  *time.Time   `gorm:"column:processed_at"`
	Outcome      EventOutcome `gorm:"column:outcome;size:16"`
	ErrorMessage string       `gorm:"column:error_message;size:512"`
	CreatedAt    time.Time    `gorm:"column:created_at"`
}

func (RawWebhookEvent) TableName() string {
	return "webhook_events"
}

// EventRepo 原始事件存储
type EventRepo interface {
	// CreateEvent 同步落库，失败必须向上冒泡（这是唯一对调用方报 500 的场景）
	CreateEvent(ctx context.Context, event *RawWebhookEvent) error
	// MarkProcessed 写入终态。只允许从 processed=false 翻转一次。
	MarkProcessed(ctx context.Context, eventID string, outcome EventOutcome, errMsg string) error
	// GetEvent 根据对外 id 获取
	GetEvent(ctx context.Context, eventID string) (*RawWebhookEvent, error)
	// ListEvents 运维查询：按 processed 过滤 + 分页
	ListEvents(ctx context.Context, processed *bool, page, limit int) ([]*RawWebhookEvent, error)
}
