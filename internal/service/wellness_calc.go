package service

import (
	"math"
	"time"

	"github.com/yuqie6/PlayPulse/internal/schema"
)

// 评分权重
const (
	weightHours    = 0.20
	weightSessions = 0.15
	weightBreaks   = 0.15
	weightMood     = 0.25
	weightLate     = 0.25

	longSessionSeconds = 3000 // 超过 50 分钟视为长会话，需要中途休息
	defaultUserAge     = 18
)

// AgeLimits 年龄段游玩上限（小时）
type AgeLimits struct {
	MaxHoursPerDay  float64
	MaxHoursPerWeek float64 // 仅展示，不参与评分
}

// LimitsForAge 年龄段上限表；负数视为未知，按成人处理
func LimitsForAge(age int) AgeLimits {
	switch {
	case age < 0:
		return LimitsForAge(defaultUserAge)
	case age <= 2:
		return AgeLimits{0, 0}
	case age <= 5:
		return AgeLimits{1, 7}
	case age <= 12:
		return AgeLimits{2, 14}
	case age <= 17:
		return AgeLimits{2, 14}
	default:
		return AgeLimits{3, 21}
	}
}

// DayInput 单日评分输入
type DayInput struct {
	UserID   int64
	Date     string
	Age      int
	Sessions []schema.SessionHistory // 与当天有重叠的会话
	Moods    []schema.MoodEntry      // 当天窗口内的心情
	Location *time.Location
}

// ComputeDailyMetrics 纯计算：会话 + 心情 + 年龄 -> 当日指标
func ComputeDailyMetrics(in DayInput) *schema.DailyMetrics {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	limits := LimitsForAge(in.Age)

	m := &schema.DailyMetrics{
		UserID:          in.UserID,
		MetricDate:      in.Date,
		SessionCount:    len(in.Sessions),
		MaxHoursPerDay:  limits.MaxHoursPerDay,
		MaxHoursPerWeek: limits.MaxHoursPerWeek,
	}

	var totalSeconds int64
	longSessions, longWithBreaks := 0, 0
	for _, s := range in.Sessions {
		totalSeconds += s.DurationSeconds
		if s.PauseCount > 0 {
			m.SessionsWithBreaks++
		}
		if s.DurationSeconds > longSessionSeconds {
			longSessions++
			if s.PauseCount > 0 {
				longWithBreaks++
			}
		}
		bucketByStartHour(m, s.Start().In(loc).Hour())
		m.LateNightMinutes += lateNightMinutes(s.Start(), s.End(), loc)
	}
	m.TotalHours = float64(totalSeconds) / 3600

	m.BreakComplianceRatio = 1.0
	if longSessions > 0 {
		m.BreakComplianceRatio = float64(longWithBreaks) / float64(longSessions)
	}

	if len(in.Moods) > 0 {
		sum := 0
		for _, e := range in.Moods {
			sum += e.MoodRating
		}
		avg := float64(sum) / float64(len(in.Moods))
		m.AverageMood = &avg
	}

	m.HealthScore = healthScore(m, float64(totalSeconds)/60)
	return m
}

func healthScore(m *schema.DailyMetrics, totalMinutes float64) int {
	normHours := hoursPenalty(m.TotalHours, m.MaxHoursPerDay)

	normSessions := 0.0
	if m.SessionCount > 2 {
		normSessions = clamp01(float64(m.SessionCount-2) / 3)
	}

	breakPenalty := 1 - m.BreakComplianceRatio

	moodPenalty := 0.5
	if m.AverageMood != nil {
		moodPenalty = (5 - *m.AverageMood) / 4
	}

	latePenalty := 0.0
	if totalMinutes > 0 {
		latePenalty = clamp01(float64(m.LateNightMinutes) / totalMinutes)
	}

	penalty := weightHours*normHours +
		weightSessions*normSessions +
		weightBreaks*breakPenalty +
		weightMood*moodPenalty +
		weightLate*latePenalty

	raw := 100 * (1 - penalty)
	// 先截到 1e-9 消除浮点尾差，再四舍五入
	raw = math.Round(raw*1e9) / 1e9
	score := int(math.Floor(raw + 0.5))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// hoursPenalty 低于上限 80% 不扣分，达到上限扣满；上限为 0 时有时长即扣满
func hoursPenalty(totalHours, limit float64) float64 {
	if limit <= 0 {
		if totalHours > 0 {
			return 1
		}
		return 0
	}
	return clamp01((totalHours - 0.8*limit) / (0.2 * limit))
}

func bucketByStartHour(m *schema.DailyMetrics, hour int) {
	switch {
	case hour >= 6 && hour < 12:
		m.MorningSessions++
	case hour >= 12 && hour < 18:
		m.AfternoonSessions++
	case hour >= 18 && hour < 22:
		m.EveningSessions++
	case hour >= 22:
		m.NightSessions++
	default:
		m.LateNightSessions++
	}
}

func isLateNightHour(hour int) bool {
	return hour >= 22 || hour < 6
}

// lateNightMinutes 逐分钟扫描 [start, end)，统计本地时间落在 22:00-06:00 的整分钟数；
// 末尾不足一分钟的部分不计
func lateNightMinutes(start, end time.Time, loc *time.Location) int64 {
	if !start.Before(end) {
		return 0
	}
	minutes := int64(end.Sub(start) / time.Minute)
	var count int64
	t := start.In(loc)
	for i := int64(0); i < minutes; i++ {
		if isLateNightHour(t.Hour()) {
			count++
		}
		t = t.Add(time.Minute)
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
