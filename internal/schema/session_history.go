package schema

import "time"

// SessionHistory 已结束的一次游玩会话（不可变记录）
// 数据量级：万级/年
type SessionHistory struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlaythroughID   int64     `gorm:"not null;uniqueIndex:idx_session_playthrough_number,priority:1" json:"playthrough_id"`
	SessionNumber   int       `gorm:"not null;uniqueIndex:idx_session_playthrough_number,priority:2" json:"session_number"` // 1 起始，稠密
	DurationSeconds int64     `json:"duration_seconds"`
	PauseCount      int       `json:"pause_count"`
	StartedAt       int64     `gorm:"index" json:"started_at"` // Unix 毫秒
	EndedAt         int64     `gorm:"index" json:"ended_at"`   // Unix 毫秒
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (SessionHistory) TableName() string {
	return "session_history"
}

// Start 开始时间
func (s *SessionHistory) Start() time.Time {
	return time.UnixMilli(s.StartedAt)
}

// End 结束时间
func (s *SessionHistory) End() time.Time {
	return time.UnixMilli(s.EndedAt)
}
