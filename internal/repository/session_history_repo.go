package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/PlayPulse/internal/schema"
	"gorm.io/gorm"
)

// SessionHistoryRepository 会话账本仓储
// 所有改动账本的写操作都在同一事务里连同 playthrough 一起落库
type SessionHistoryRepository struct {
	db *gorm.DB
}

// NewSessionHistoryRepository 创建会话账本仓储
func NewSessionHistoryRepository(db *gorm.DB) *SessionHistoryRepository {
	return &SessionHistoryRepository{db: db}
}

// GetByID 按 ID 查询（不存在返回 nil, nil）
func (r *SessionHistoryRepository) GetByID(ctx context.Context, id int64) (*schema.SessionHistory, error) {
	var s schema.SessionHistory
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return &s, nil
}

// ListByPlaythrough 按 session_number 升序列出
func (r *SessionHistoryRepository) ListByPlaythrough(ctx context.Context, playthroughID int64) ([]schema.SessionHistory, error) {
	var out []schema.SessionHistory
	if err := r.db.WithContext(ctx).
		Where("playthrough_id = ?", playthroughID).
		Order("session_number ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return out, nil
}

// ListByUserOverlapping 查询用户在 [startMs, endMs) 内有重叠的会话
// 重叠口径：ended_at >= start AND started_at < end
func (r *SessionHistoryRepository) ListByUserOverlapping(ctx context.Context, userID int64, startMs, endMs int64) ([]schema.SessionHistory, error) {
	var out []schema.SessionHistory
	if err := r.db.WithContext(ctx).
		Joins("JOIN playthroughs ON playthroughs.id = session_history.playthrough_id").
		Where("playthroughs.user_id = ?", userID).
		Where("session_history.ended_at >= ? AND session_history.started_at < ?", startMs, endMs).
		Order("session_history.ended_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return out, nil
}

// Append 追加一条会话（编号由调用方给出），并保存 playthrough
func (r *SessionHistoryRepository) Append(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error {
	if p == nil || s == nil {
		return fmt.Errorf("playthrough/session is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s.PlaythroughID = p.ID
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("写入会话失败: %w", err)
		}
		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("保存游玩记录失败: %w", err)
		}
		return nil
	})
}

// InsertAt 在 s.SessionNumber 位置插入会话：编号 >= 该位置的会话先按降序逐条 +1，避免唯一索引冲突
func (r *SessionHistoryRepository) InsertAt(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error {
	if p == nil || s == nil {
		return fmt.Errorf("playthrough/session is nil")
	}
	if s.SessionNumber <= 0 {
		return fmt.Errorf("invalid session number: %d", s.SessionNumber)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var later []schema.SessionHistory
		if err := tx.Where("playthrough_id = ? AND session_number >= ?", p.ID, s.SessionNumber).
			Order("session_number DESC").
			Find(&later).Error; err != nil {
			return fmt.Errorf("查询待重编号会话失败: %w", err)
		}
		for _, it := range later {
			if err := tx.Model(&schema.SessionHistory{}).
				Where("id = ?", it.ID).
				Update("session_number", it.SessionNumber+1).Error; err != nil {
				return fmt.Errorf("会话重编号失败: %w", err)
			}
		}

		s.PlaythroughID = p.ID
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("写入会话失败: %w", err)
		}
		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("保存游玩记录失败: %w", err)
		}
		return nil
	})
}

// Remove 删除会话并把后续编号逐条 -1，同时解除心情关联、保存 playthrough
func (r *SessionHistoryRepository) Remove(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error {
	if p == nil || s == nil {
		return fmt.Errorf("playthrough/session is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&schema.MoodEntry{}).
			Where("session_history_id = ?", s.ID).
			Update("session_history_id", nil).Error; err != nil {
			return fmt.Errorf("解除心情关联失败: %w", err)
		}
		if err := tx.Where("id = ? AND playthrough_id = ?", s.ID, p.ID).Delete(&schema.SessionHistory{}).Error; err != nil {
			return fmt.Errorf("删除会话失败: %w", err)
		}

		var later []schema.SessionHistory
		if err := tx.Where("playthrough_id = ? AND session_number > ?", p.ID, s.SessionNumber).
			Order("session_number ASC").
			Find(&later).Error; err != nil {
			return fmt.Errorf("查询待重编号会话失败: %w", err)
		}
		for _, it := range later {
			if err := tx.Model(&schema.SessionHistory{}).
				Where("id = ?", it.ID).
				Update("session_number", it.SessionNumber-1).Error; err != nil {
				return fmt.Errorf("会话重编号失败: %w", err)
			}
		}

		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("保存游玩记录失败: %w", err)
		}
		return nil
	})
}
