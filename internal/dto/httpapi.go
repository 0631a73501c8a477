package dto

// 注意：本包用于承载“对外契约”的 DTO（与前端/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

type CreatePlaythroughRequestDTO struct {
	GameID          int64  `json:"game_id"`
	PlaythroughType string `json:"playthrough_type"`
	Title           string `json:"title"`
	Platform        string `json:"platform"`
	StartDate       string `json:"start_date"` // YYYY-MM-DD，可空
}

type UpdateDurationRequestDTO struct {
	DurationSeconds *int64 `json:"duration_seconds"`
}

type UpdateTextRequestDTO struct {
	Value string `json:"value"`
}

// ManualSessionRequestDTO 时间为 RFC3339
type ManualSessionRequestDTO struct {
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
}

type ImportSessionsRequestDTO struct {
	SourcePlaythroughID int64 `json:"source_playthrough_id"`
}

type MoodRequestDTO struct {
	MoodRating       int    `json:"mood_rating"`
	SessionHistoryID *int64 `json:"session_history_id"`
	Note             string `json:"note"`
}

type UserProfileDTO struct {
	UserID int64 `json:"user_id"`
	Age    *int  `json:"age"`
}

type UpdateUserProfileRequestDTO struct {
	Age *int `json:"age"`
}
