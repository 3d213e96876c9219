package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinport.io/internal/deposit/domain"
	"coinport.io/pkg/orm"
	"coinport.io/pkg/xerr"
	"gorm.io/gorm"
)

// ========== EventRepo 接口实现 ==========

// CreateEvent 原始事件落库
// 这是 webhook 请求路径上唯一的同步写，失败会让接口返回 500
func (r *Repo) CreateEvent(ctx context.Context, event *domain.RawWebhookEvent) error {
	err := r.getDb(ctx).WithContext(ctx).Create(event).Error
	if err != nil {
		return xerr.New(xerr.PersistFailed, fmt.Sprintf("create webhook event failed: %v", err))
	}
	return nil
}

// MarkProcessed 写入终态
// 🔒 乐观锁：只允许 processed=false 的记录翻转，防止重复写终态
func (r *Repo) MarkProcessed(ctx context.Context, eventID string, outcome domain.EventOutcome, errMsg string) error {
	now := time.Now()
	res := r.getDb(ctx).WithContext(ctx).Model(&domain.RawWebhookEvent{}).
		Where("event_id = ? AND processed = ?", eventID, false).
		Updates(map[string]interface{}{
			"processed":     true,
			"processed_at":  &now,
			"outcome":       outcome,
			"error_message": errMsg,
		})

	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("mark processed failed: %v", res.Error))
	}
	if res.RowsAffected == 0 {
		// 已经被别的 worker 写过终态了，或者 eventID 不存在
		return fmt.Errorf("event %s already processed or not found", eventID)
	}
	return nil
}

// GetEvent 根据对外 id 获取
func (r *Repo) GetEvent(ctx context.Context, eventID string) (*domain.RawWebhookEvent, error) {
	var event domain.RawWebhookEvent
	err := r.getDb(ctx).WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.NewErrCode(xerr.RecordNotFound)
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("get event failed: %v", err))
	}
	return &event, nil
}

// ListEvents 运维查询
func (r *Repo) ListEvents(ctx context.Context, processed *bool, page, limit int) ([]*domain.RawWebhookEvent, error) {
	events := make([]*domain.RawWebhookEvent, 0, limit)
	db := r.getDb(ctx).WithContext(ctx).Model(&domain.RawWebhookEvent{})
	if processed != nil {
		db = db.Where("processed = ?", *processed)
	}
	db = db.Order("created_at DESC")

	err := orm.ApplyPagination(db, page, limit).Find(&events).Error
	return events, err
}
