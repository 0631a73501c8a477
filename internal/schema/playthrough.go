package schema

import "time"

// PlaythroughState 计时状态（互斥，单一枚举）
type PlaythroughState string

const (
	StateNotStarted PlaythroughState = "not_started"
	StateActive     PlaythroughState = "active"
	StatePaused     PlaythroughState = "paused"
	StateCompleted  PlaythroughState = "completed"
	StateDropped    PlaythroughState = "dropped"
)

// Playthrough 用户对某个游戏的一次游玩
// 时间字段统一为 Unix 毫秒，0 表示未设置
type Playthrough struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64            `gorm:"index;not null" json:"user_id"`
	GameID          int64            `gorm:"index;not null" json:"game_id"`
	PlaythroughType string           `gorm:"size:50;not null" json:"playthrough_type"`
	Title           string           `gorm:"size:255" json:"title"`
	Platform        string           `gorm:"size:100" json:"platform"`
	State           PlaythroughState `gorm:"size:20;index;not null" json:"state"`

	DurationSeconds int64 `json:"duration_seconds"` // 已提交的累计时长
	SessionCount    int   `json:"session_count"`
	PauseCount      int   `json:"pause_count"` // 当前会话内的暂停次数

	// 进行中会话的记账字段，仅在 active/paused 时有效
	CurrentStartedAt      int64 `json:"current_started_at"`
	SessionAnchorTime     int64 `json:"session_anchor_time"`
	SessionAnchorDuration int64 `json:"session_anchor_duration"`
	ManualTimeSet         bool  `json:"manual_time_set"`

	StartDate    string `gorm:"size:10" json:"start_date"` // YYYY-MM-DD
	EndDate      string `gorm:"size:10" json:"end_date"`
	StoppedAt    int64  `json:"stopped_at"`
	LastPlayedAt int64  `gorm:"index" json:"last_played_at"`
	DroppedAt    int64  `json:"dropped_at"`
	PickedUpAt   int64  `json:"picked_up_at"`

	ImportedFromPlaythroughID *int64 `json:"imported_from_playthrough_id"`
	ImportedDurationSeconds   int64  `json:"imported_duration_seconds"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Playthrough) TableName() string {
	return "playthroughs"
}

// HasOpenSession 是否存在进行中的会话（含暂停）
func (p *Playthrough) HasOpenSession() bool {
	return p.State == StateActive || p.State == StatePaused
}
