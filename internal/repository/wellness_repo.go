package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/PlayPulse/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoodRepository 心情记录仓储
type MoodRepository struct {
	db *gorm.DB
}

// NewMoodRepository 创建心情仓储
func NewMoodRepository(db *gorm.DB) *MoodRepository {
	return &MoodRepository{db: db}
}

// Create 写入心情记录
func (r *MoodRepository) Create(ctx context.Context, entry *schema.MoodEntry) error {
	if entry == nil {
		return fmt.Errorf("mood entry is nil")
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("写入心情记录失败: %w", err)
	}
	return nil
}

// ListByUserRange 查询 [startMs, endMs) 内的心情记录，按记录时间倒序
func (r *MoodRepository) ListByUserRange(ctx context.Context, userID int64, startMs, endMs int64) ([]schema.MoodEntry, error) {
	var out []schema.MoodEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ? AND recorded_at < ?", userID, startMs, endMs).
		Order("recorded_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询心情记录失败: %w", err)
	}
	return out, nil
}

// MetricsRepository 每日健康指标仓储
type MetricsRepository struct {
	db *gorm.DB
}

// NewMetricsRepository 创建指标仓储
func NewMetricsRepository(db *gorm.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Upsert 按 (user_id, metric_date) 整行覆盖
func (r *MetricsRepository) Upsert(ctx context.Context, m *schema.DailyMetrics) error {
	if m == nil {
		return fmt.Errorf("metrics is nil")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "metric_date"}},
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("写入健康指标失败: %w", err)
	}
	return nil
}

// GetByDate 按日期获取（不存在返回 nil, nil）
func (r *MetricsRepository) GetByDate(ctx context.Context, userID int64, date string) (*schema.DailyMetrics, error) {
	var m schema.DailyMetrics
	err := r.db.WithContext(ctx).Where("user_id = ? AND metric_date = ?", userID, date).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询健康指标失败: %w", err)
	}
	return &m, nil
}

// ListByDateRange 获取 [startDate, endDate] 内的指标，按日期升序
func (r *MetricsRepository) ListByDateRange(ctx context.Context, userID int64, startDate, endDate string) ([]schema.DailyMetrics, error) {
	var out []schema.DailyMetrics
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND metric_date >= ? AND metric_date <= ?", userID, startDate, endDate).
		Order("metric_date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询日期范围指标失败: %w", err)
	}
	return out, nil
}

// ListDates 返回 [startDate, endDate] 内已有指标的日期集合
func (r *MetricsRepository) ListDates(ctx context.Context, userID int64, startDate, endDate string) (map[string]struct{}, error) {
	var dates []string
	err := r.db.WithContext(ctx).
		Model(&schema.DailyMetrics{}).
		Where("user_id = ? AND metric_date >= ? AND metric_date <= ?", userID, startDate, endDate).
		Pluck("metric_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("查询指标日期失败: %w", err)
	}
	out := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		out[d] = struct{}{}
	}
	return out, nil
}

// UserRepository 用户资料仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetAge 查询年龄；用户不存在或未填写时返回 nil
func (r *UserRepository) GetAge(ctx context.Context, userID int64) (*int, error) {
	var u schema.UserProfile
	err := r.db.WithContext(ctx).First(&u, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return u.Age, nil
}

// UpsertAge 写入年龄（nil 表示清空）
func (r *UserRepository) UpsertAge(ctx context.Context, userID int64, age *int) error {
	u := schema.UserProfile{ID: userID, Age: age}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"age", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("写入用户资料失败: %w", err)
	}
	return nil
}

// HealthSettingsRepository 健康设置仓储
type HealthSettingsRepository struct {
	db *gorm.DB
}

// NewHealthSettingsRepository 创建健康设置仓储
func NewHealthSettingsRepository(db *gorm.DB) *HealthSettingsRepository {
	return &HealthSettingsRepository{db: db}
}

// Get 查询用户设置（未保存过返回 nil, nil）
func (r *HealthSettingsRepository) Get(ctx context.Context, userID int64) (*schema.HealthSettings, error) {
	var s schema.HealthSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询健康设置失败: %w", err)
	}
	return &s, nil
}

// Upsert 按 user_id 整行覆盖
func (r *HealthSettingsRepository) Upsert(ctx context.Context, s *schema.HealthSettings) error {
	if s == nil {
		return fmt.Errorf("health settings is nil")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("写入健康设置失败: %w", err)
	}
	return nil
}
