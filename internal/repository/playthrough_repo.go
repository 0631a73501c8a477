package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/PlayPulse/internal/schema"
	"gorm.io/gorm"
)

// PlaythroughRepository 游玩记录仓储
type PlaythroughRepository struct {
	db *gorm.DB
}

// NewPlaythroughRepository 创建游玩记录仓储
func NewPlaythroughRepository(db *gorm.DB) *PlaythroughRepository {
	return &PlaythroughRepository{db: db}
}

// Create 创建游玩记录
func (r *PlaythroughRepository) Create(ctx context.Context, p *schema.Playthrough) error {
	if p == nil {
		return fmt.Errorf("playthrough is nil")
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("创建游玩记录失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 查询（不存在返回 nil, nil）
func (r *PlaythroughRepository) GetByID(ctx context.Context, id int64) (*schema.Playthrough, error) {
	var p schema.Playthrough
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询游玩记录失败: %w", err)
	}
	return &p, nil
}

// ListByUser 按创建时间倒序列出用户的游玩记录
func (r *PlaythroughRepository) ListByUser(ctx context.Context, userID int64) ([]schema.Playthrough, error) {
	var out []schema.Playthrough
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询游玩记录失败: %w", err)
	}
	return out, nil
}

// Save 整行写回
func (r *PlaythroughRepository) Save(ctx context.Context, p *schema.Playthrough) error {
	if p == nil || p.ID <= 0 {
		return fmt.Errorf("invalid playthrough")
	}
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("保存游玩记录失败: %w", err)
	}
	return nil
}

// Delete 删除游玩记录及其会话；指向这些会话的心情记录解除关联而不是删除
func (r *PlaythroughRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionIDs := tx.Model(&schema.SessionHistory{}).Select("id").Where("playthrough_id = ?", id)
		if err := tx.Model(&schema.MoodEntry{}).
			Where("session_history_id IN (?)", sessionIDs).
			Update("session_history_id", nil).Error; err != nil {
			return fmt.Errorf("解除心情关联失败: %w", err)
		}
		if err := tx.Where("playthrough_id = ?", id).Delete(&schema.SessionHistory{}).Error; err != nil {
			return fmt.Errorf("删除会话失败: %w", err)
		}
		// imported_from_playthrough_id 指向本记录的行保持不变：导入只拷贝数值，且只允许一次
		if err := tx.Delete(&schema.Playthrough{}, id).Error; err != nil {
			return fmt.Errorf("删除游玩记录失败: %w", err)
		}
		return nil
	})
}
