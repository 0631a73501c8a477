package schema

import "time"

// MoodEntry 用户自评心情
type MoodEntry struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"index;not null" json:"user_id"`
	SessionHistoryID *int64    `gorm:"index" json:"session_history_id"`
	MoodRating       int       `gorm:"not null" json:"mood_rating"` // 1-5
	Note             string    `gorm:"size:500" json:"note"`
	RecordedAt       int64     `gorm:"index;not null" json:"recorded_at"` // Unix 毫秒
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (MoodEntry) TableName() string {
	return "mood_entries"
}

// DailyMetrics 每日健康指标（完全派生，按 user+date 幂等覆盖）
type DailyMetrics struct {
	ID                   int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64    `gorm:"not null;uniqueIndex:idx_metrics_user_date,priority:1" json:"user_id"`
	MetricDate           string   `gorm:"size:10;not null;uniqueIndex:idx_metrics_user_date,priority:2" json:"metric_date"`
	HealthScore          int      `json:"health_score"`
	TotalHours           float64  `json:"total_hours"`
	SessionCount         int      `json:"session_count"`
	AverageMood          *float64 `json:"average_mood"`
	LateNightMinutes     int64    `json:"late_night_minutes"`
	BreakComplianceRatio float64  `json:"break_compliance_ratio"`
	SessionsWithBreaks   int      `json:"sessions_with_breaks"`

	MorningSessions   int `json:"morning_sessions"`
	AfternoonSessions int `json:"afternoon_sessions"`
	EveningSessions   int `json:"evening_sessions"`
	NightSessions     int `json:"night_sessions"`
	LateNightSessions int `json:"late_night_sessions"`

	// 年龄段上限，仅供展示；周上限不参与评分
	MaxHoursPerDay  float64 `json:"max_hours_per_day"`
	MaxHoursPerWeek float64 `json:"max_hours_per_week"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (DailyMetrics) TableName() string {
	return "daily_metrics"
}

// UserProfile 用户资料（仅保存评分需要的年龄）
type UserProfile struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Age       *int      `json:"age"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (UserProfile) TableName() string {
	return "user_profiles"
}

// HealthSettings 用户的提醒与游玩目标设置，每个用户一行
// 目标只用于看板进度展示，不参与健康分计算
type HealthSettings struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID int64 `gorm:"not null;uniqueIndex" json:"user_id"`

	NotificationsEnabled     bool `json:"notifications_enabled"`
	SoundsEnabled            bool `json:"sounds_enabled"`
	HydrationReminderEnabled bool `json:"hydration_reminder_enabled"`
	HydrationIntervalMinutes int  `json:"hydration_interval_minutes"`
	StandReminderEnabled     bool `json:"stand_reminder_enabled"`
	StandIntervalMinutes     int  `json:"stand_interval_minutes"`
	BreakReminderEnabled     bool `json:"break_reminder_enabled"`
	BreakIntervalMinutes     int  `json:"break_interval_minutes"`
	BreakDurationMinutes     int  `json:"break_duration_minutes"`

	GoalsEnabled             bool     `json:"goals_enabled"`
	MaxHoursPerDayEnabled    bool     `json:"max_hours_per_day_enabled"`
	MaxHoursPerDay           *float64 `json:"max_hours_per_day"`
	MaxSessionsPerDayEnabled bool     `json:"max_sessions_per_day_enabled"`
	MaxSessionsPerDay        *int     `json:"max_sessions_per_day"`
	MaxHoursPerWeekEnabled   bool     `json:"max_hours_per_week_enabled"`
	MaxHoursPerWeek          *float64 `json:"max_hours_per_week"`
	GoalNotificationsEnabled bool     `json:"goal_notifications_enabled"`

	MoodPromptEnabled  bool `json:"mood_prompt_enabled"`
	MoodPromptRequired bool `json:"mood_prompt_required"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (HealthSettings) TableName() string {
	return "health_settings"
}
