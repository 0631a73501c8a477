package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yuqie6/PlayPulse/internal/schema"
)

const maxReminderIntervalMinutes = 24 * 60

// defaultHealthSettings 未保存过设置的用户看到的默认值
func defaultHealthSettings(userID int64) *schema.HealthSettings {
	return &schema.HealthSettings{
		UserID:                   userID,
		HydrationIntervalMinutes: 30,
		StandIntervalMinutes:     60,
		BreakIntervalMinutes:     50,
		BreakDurationMinutes:     10,
		MoodPromptEnabled:        true,
	}
}

// SettingsPatch 健康设置的部分更新，nil 字段保持原值
type SettingsPatch struct {
	NotificationsEnabled     *bool `json:"notifications_enabled"`
	SoundsEnabled            *bool `json:"sounds_enabled"`
	HydrationReminderEnabled *bool `json:"hydration_reminder_enabled"`
	HydrationIntervalMinutes *int  `json:"hydration_interval_minutes"`
	StandReminderEnabled     *bool `json:"stand_reminder_enabled"`
	StandIntervalMinutes     *int  `json:"stand_interval_minutes"`
	BreakReminderEnabled     *bool `json:"break_reminder_enabled"`
	BreakIntervalMinutes     *int  `json:"break_interval_minutes"`
	BreakDurationMinutes     *int  `json:"break_duration_minutes"`

	GoalsEnabled             *bool    `json:"goals_enabled"`
	MaxHoursPerDayEnabled    *bool    `json:"max_hours_per_day_enabled"`
	MaxHoursPerDay           *float64 `json:"max_hours_per_day"`
	MaxSessionsPerDayEnabled *bool    `json:"max_sessions_per_day_enabled"`
	MaxSessionsPerDay        *int     `json:"max_sessions_per_day"`
	MaxHoursPerWeekEnabled   *bool    `json:"max_hours_per_week_enabled"`
	MaxHoursPerWeek          *float64 `json:"max_hours_per_week"`
	GoalNotificationsEnabled *bool    `json:"goal_notifications_enabled"`

	MoodPromptEnabled  *bool `json:"mood_prompt_enabled"`
	MoodPromptRequired *bool `json:"mood_prompt_required"`
}

func (p SettingsPatch) applyTo(s *schema.HealthSettings) {
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}

	setBool(&s.NotificationsEnabled, p.NotificationsEnabled)
	setBool(&s.SoundsEnabled, p.SoundsEnabled)
	setBool(&s.HydrationReminderEnabled, p.HydrationReminderEnabled)
	setInt(&s.HydrationIntervalMinutes, p.HydrationIntervalMinutes)
	setBool(&s.StandReminderEnabled, p.StandReminderEnabled)
	setInt(&s.StandIntervalMinutes, p.StandIntervalMinutes)
	setBool(&s.BreakReminderEnabled, p.BreakReminderEnabled)
	setInt(&s.BreakIntervalMinutes, p.BreakIntervalMinutes)
	setInt(&s.BreakDurationMinutes, p.BreakDurationMinutes)

	setBool(&s.GoalsEnabled, p.GoalsEnabled)
	setBool(&s.MaxHoursPerDayEnabled, p.MaxHoursPerDayEnabled)
	if p.MaxHoursPerDay != nil {
		v := *p.MaxHoursPerDay
		s.MaxHoursPerDay = &v
	}
	setBool(&s.MaxSessionsPerDayEnabled, p.MaxSessionsPerDayEnabled)
	if p.MaxSessionsPerDay != nil {
		v := *p.MaxSessionsPerDay
		s.MaxSessionsPerDay = &v
	}
	setBool(&s.MaxHoursPerWeekEnabled, p.MaxHoursPerWeekEnabled)
	if p.MaxHoursPerWeek != nil {
		v := *p.MaxHoursPerWeek
		s.MaxHoursPerWeek = &v
	}
	setBool(&s.GoalNotificationsEnabled, p.GoalNotificationsEnabled)

	setBool(&s.MoodPromptEnabled, p.MoodPromptEnabled)
	setBool(&s.MoodPromptRequired, p.MoodPromptRequired)
}

func validateSettings(s *schema.HealthSettings) error {
	intervals := []struct {
		name string
		v    int
	}{
		{"hydration_interval_minutes", s.HydrationIntervalMinutes},
		{"stand_interval_minutes", s.StandIntervalMinutes},
		{"break_interval_minutes", s.BreakIntervalMinutes},
		{"break_duration_minutes", s.BreakDurationMinutes},
	}
	for _, it := range intervals {
		if it.v < 1 || it.v > maxReminderIntervalMinutes {
			return fmt.Errorf("%w: %s 必须在 1-%d 分钟之间", ErrValidation, it.name, maxReminderIntervalMinutes)
		}
	}

	if s.MaxHoursPerDay != nil && (*s.MaxHoursPerDay <= 0 || *s.MaxHoursPerDay > 24) {
		return fmt.Errorf("%w: max_hours_per_day 必须在 (0, 24] 之间", ErrValidation)
	}
	if s.MaxSessionsPerDay != nil && *s.MaxSessionsPerDay < 1 {
		return fmt.Errorf("%w: max_sessions_per_day 至少为 1", ErrValidation)
	}
	if s.MaxHoursPerWeek != nil && (*s.MaxHoursPerWeek <= 0 || *s.MaxHoursPerWeek > 168) {
		return fmt.Errorf("%w: max_hours_per_week 必须在 (0, 168] 之间", ErrValidation)
	}

	// 打开某项目标时必须给出目标值
	if s.MaxHoursPerDayEnabled && s.MaxHoursPerDay == nil {
		return fmt.Errorf("%w: 启用每日时长目标时必须填写 max_hours_per_day", ErrValidation)
	}
	if s.MaxSessionsPerDayEnabled && s.MaxSessionsPerDay == nil {
		return fmt.Errorf("%w: 启用每日会话数目标时必须填写 max_sessions_per_day", ErrValidation)
	}
	if s.MaxHoursPerWeekEnabled && s.MaxHoursPerWeek == nil {
		return fmt.Errorf("%w: 启用每周时长目标时必须填写 max_hours_per_week", ErrValidation)
	}
	return nil
}

// GetSettings 读取用户设置；从未保存过时返回默认值（不落库）
func (s *WellnessService) GetSettings(ctx context.Context, userID int64) (*schema.HealthSettings, error) {
	if s.settings == nil {
		return defaultHealthSettings(userID), nil
	}
	cur, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return defaultHealthSettings(userID), nil
	}
	return cur, nil
}

// UpdateSettings 把 patch 合并到当前设置（或默认值）上，校验后整行保存
func (s *WellnessService) UpdateSettings(ctx context.Context, userID int64, patch SettingsPatch) (*schema.HealthSettings, error) {
	if s.settings == nil {
		return nil, fmt.Errorf("健康设置存储未配置")
	}

	unlock := s.locks.Lock(settingsKey(userID))
	defer unlock()

	cur, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.applyTo(cur)
	cur.UserID = userID
	if err := validateSettings(cur); err != nil {
		return nil, err
	}
	if err := s.settings.Upsert(ctx, cur); err != nil {
		return nil, err
	}
	slog.Info("已更新健康设置",
		"user_id", userID,
		"goals_enabled", cur.GoalsEnabled,
		"break_reminder", cur.BreakReminderEnabled)

	saved, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return cur, nil
	}
	return saved, nil
}

// GoalProgress 看板上的目标进度；目标值与开关原样来自设置
type GoalProgress struct {
	GoalsEnabled bool `json:"goals_enabled"`

	HoursToday            float64  `json:"hours_today"`
	MaxHoursPerDay        *float64 `json:"max_hours_per_day"`
	MaxHoursPerDayEnabled bool     `json:"max_hours_per_day_enabled"`

	SessionsToday            int  `json:"sessions_today"`
	MaxSessionsPerDay        *int `json:"max_sessions_per_day"`
	MaxSessionsPerDayEnabled bool `json:"max_sessions_per_day_enabled"`

	HoursThisWeek          float64  `json:"hours_this_week"`
	MaxHoursPerWeek        *float64 `json:"max_hours_per_week"`
	MaxHoursPerWeekEnabled bool     `json:"max_hours_per_week_enabled"`
}

// ExceedsAny 任一已启用目标被超过
func (g GoalProgress) ExceedsAny() bool {
	if !g.GoalsEnabled {
		return false
	}
	if g.MaxHoursPerDayEnabled && g.MaxHoursPerDay != nil && g.HoursToday > *g.MaxHoursPerDay {
		return true
	}
	if g.MaxSessionsPerDayEnabled && g.MaxSessionsPerDay != nil && g.SessionsToday > *g.MaxSessionsPerDay {
		return true
	}
	return g.MaxHoursPerWeekEnabled && g.MaxHoursPerWeek != nil && g.HoursThisWeek > *g.MaxHoursPerWeek
}

func goalProgress(settings *schema.HealthSettings, today *schema.DailyMetrics, week WeeklyAggregate) GoalProgress {
	g := GoalProgress{
		GoalsEnabled:             settings.GoalsEnabled,
		MaxHoursPerDay:           settings.MaxHoursPerDay,
		MaxHoursPerDayEnabled:    settings.MaxHoursPerDayEnabled,
		MaxSessionsPerDay:        settings.MaxSessionsPerDay,
		MaxSessionsPerDayEnabled: settings.MaxSessionsPerDayEnabled,
		HoursThisWeek:            week.TotalHours,
		MaxHoursPerWeek:          settings.MaxHoursPerWeek,
		MaxHoursPerWeekEnabled:   settings.MaxHoursPerWeekEnabled,
	}
	if today != nil {
		g.HoursToday = today.TotalHours
		g.SessionsToday = today.SessionCount
	}
	return g
}

func settingsKey(userID int64) string {
	return "settings:" + strconv.FormatInt(userID, 10)
}
