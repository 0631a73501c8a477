package service

import (
	"context"

	"github.com/yuqie6/PlayPulse/internal/eventbus"
	"github.com/yuqie6/PlayPulse/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type PlaythroughRepository interface {
	Create(ctx context.Context, p *schema.Playthrough) error
	GetByID(ctx context.Context, id int64) (*schema.Playthrough, error)
	ListByUser(ctx context.Context, userID int64) ([]schema.Playthrough, error)
	Save(ctx context.Context, p *schema.Playthrough) error
	Delete(ctx context.Context, id int64) error
}

// SessionLedger 会话账本；改动账本的方法须与 playthrough 的保存处于同一事务
type SessionLedger interface {
	GetByID(ctx context.Context, id int64) (*schema.SessionHistory, error)
	ListByPlaythrough(ctx context.Context, playthroughID int64) ([]schema.SessionHistory, error)
	ListByUserOverlapping(ctx context.Context, userID int64, startMs, endMs int64) ([]schema.SessionHistory, error)
	Append(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error
	InsertAt(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error
	Remove(ctx context.Context, p *schema.Playthrough, s *schema.SessionHistory) error
}

type MoodRepository interface {
	Create(ctx context.Context, entry *schema.MoodEntry) error
	ListByUserRange(ctx context.Context, userID int64, startMs, endMs int64) ([]schema.MoodEntry, error)
}

type MetricsRepository interface {
	Upsert(ctx context.Context, m *schema.DailyMetrics) error
	GetByDate(ctx context.Context, userID int64, date string) (*schema.DailyMetrics, error)
	ListByDateRange(ctx context.Context, userID int64, startDate, endDate string) ([]schema.DailyMetrics, error)
	ListDates(ctx context.Context, userID int64, startDate, endDate string) (map[string]struct{}, error)
}

// HealthSettingsStore 健康设置（未保存过返回 nil）
type HealthSettingsStore interface {
	Get(ctx context.Context, userID int64) (*schema.HealthSettings, error)
	Upsert(ctx context.Context, s *schema.HealthSettings) error
}

// AgeLookup 用户年龄查询（未知返回 nil）
type AgeLookup interface {
	GetAge(ctx context.Context, userID int64) (*int, error)
}

// MetricsRecomputer 会话结束后触发的指标重算
type MetricsRecomputer interface {
	Recompute(ctx context.Context, userID int64, date string) (*schema.DailyMetrics, error)
}

// EventPublisher 事件广播（允许为 nil）
type EventPublisher interface {
	Publish(evt eventbus.Event)
}
