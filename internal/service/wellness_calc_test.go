package service

import (
	"testing"
	"time"

	"github.com/yuqie6/PlayPulse/internal/schema"
)

func session(start time.Time, d time.Duration, pauses int) schema.SessionHistory {
	return schema.SessionHistory{
		DurationSeconds: int64(d / time.Second),
		PauseCount:      pauses,
		StartedAt:       start.UnixMilli(),
		EndedAt:         start.Add(d).UnixMilli(),
	}
}

func TestComputeDailyMetricsMidnightScenario(t *testing.T) {
	start := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	m := ComputeDailyMetrics(DayInput{
		UserID:   1,
		Date:     "2025-01-01",
		Age:      18,
		Sessions: []schema.SessionHistory{session(start, 2*time.Hour, 0)},
		Location: time.UTC,
	})

	if m.LateNightMinutes != 120 {
		t.Fatalf("late night minutes = %d, want 120", m.LateNightMinutes)
	}
	if m.TotalHours != 2.0 {
		t.Fatalf("total hours = %v, want 2", m.TotalHours)
	}
	if m.BreakComplianceRatio != 0 {
		t.Fatalf("break compliance = %v, want 0", m.BreakComplianceRatio)
	}
	if m.AverageMood != nil {
		t.Fatalf("average mood should be nil")
	}
	if m.HealthScore != 48 {
		t.Fatalf("health score = %d, want 48", m.HealthScore)
	}
	if m.NightSessions != 1 || m.MaxHoursPerDay != 3 || m.MaxHoursPerWeek != 21 {
		t.Fatalf("unexpected buckets/limits: %+v", m)
	}
}

func TestComputeDailyMetricsBuckets(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2025, 1, 1, h, 0, 0, 0, time.UTC) }
	m := ComputeDailyMetrics(DayInput{
		Age: 18,
		Sessions: []schema.SessionHistory{
			session(day(5), 10*time.Minute, 0),
			session(day(6), 10*time.Minute, 0),
			session(day(12), 10*time.Minute, 1),
			session(day(18), 10*time.Minute, 0),
			session(day(21), 90*time.Minute, 0), // 21:00 开始，后 30 分钟落在深夜
		},
		Location: time.UTC,
	})
	if m.LateNightSessions != 1 || m.MorningSessions != 1 || m.AfternoonSessions != 1 ||
		m.EveningSessions != 2 || m.NightSessions != 0 {
		t.Fatalf("unexpected buckets: %+v", m)
	}
	if m.LateNightMinutes != 10+30 {
		t.Fatalf("late night minutes = %d, want 40", m.LateNightMinutes)
	}
	if m.SessionsWithBreaks != 1 {
		t.Fatalf("sessions with breaks = %d, want 1", m.SessionsWithBreaks)
	}
}

func TestLateNightMinutesIgnoresPartialMinute(t *testing.T) {
	start := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	if got := lateNightMinutes(start, start.Add(59*time.Second), time.UTC); got != 0 {
		t.Fatalf("partial minute counted: %d", got)
	}
	if got := lateNightMinutes(start, start.Add(61*time.Second), time.UTC); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	// 跨过 06:00 和下一个 22:00
	long := time.Date(2025, 1, 1, 5, 0, 0, 0, time.UTC)
	if got := lateNightMinutes(long, long.Add(18*time.Hour), time.UTC); got != 60+60 {
		t.Fatalf("expected 120, got %d", got)
	}
}

func TestBreakComplianceIsPerfectWithoutLongSessions(t *testing.T) {
	start := time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	for _, pauses := range []int{0, 1, 5} {
		m := ComputeDailyMetrics(DayInput{
			Age: 18,
			Sessions: []schema.SessionHistory{
				session(start, 3000*time.Second, pauses),
				session(start.Add(2*time.Hour), 10*time.Minute, 0),
			},
			Location: time.UTC,
		})
		if m.BreakComplianceRatio != 1.0 {
			t.Fatalf("pauses=%d: ratio=%v, want 1", pauses, m.BreakComplianceRatio)
		}
	}
}

func TestHealthScoreNonIncreasingInLateNightMinutes(t *testing.T) {
	base := schema.DailyMetrics{TotalHours: 2, SessionCount: 1, BreakComplianceRatio: 1, MaxHoursPerDay: 3}
	prev := 101
	for late := int64(0); late <= 120; late += 10 {
		m := base
		m.LateNightMinutes = late
		score := healthScore(&m, 120)
		if score > prev {
			t.Fatalf("score increased at late=%d: %d > %d", late, score, prev)
		}
		prev = score
	}
}

func TestHealthScoreNonIncreasingInHoursAboveThreshold(t *testing.T) {
	base := schema.DailyMetrics{SessionCount: 1, BreakComplianceRatio: 1, MaxHoursPerDay: 3}
	prev := 101
	for tenth := 24; tenth <= 40; tenth++ {
		m := base
		m.TotalHours = float64(tenth) / 10
		score := healthScore(&m, m.TotalHours*60)
		if score > prev {
			t.Fatalf("score increased at hours=%v: %d > %d", m.TotalHours, score, prev)
		}
		prev = score
	}

	m := base
	m.TotalHours = 2.4
	low := healthScore(&m, 144)
	m.TotalHours = 3
	high := healthScore(&m, 180)
	if low-high != 20 {
		t.Fatalf("full hours penalty should cost 20 points, got %d -> %d", low, high)
	}
}

func TestLimitsForAge(t *testing.T) {
	cases := []struct {
		age  int
		want AgeLimits
	}{
		{0, AgeLimits{0, 0}},
		{2, AgeLimits{0, 0}},
		{3, AgeLimits{1, 7}},
		{5, AgeLimits{1, 7}},
		{6, AgeLimits{2, 14}},
		{15, AgeLimits{2, 14}},
		{18, AgeLimits{3, 21}},
		{70, AgeLimits{3, 21}},
		{-1, AgeLimits{3, 21}},
	}
	for _, c := range cases {
		if got := LimitsForAge(c.age); got != c.want {
			t.Fatalf("age %d: got %+v want %+v", c.age, got, c.want)
		}
	}
}

func TestHoursPenaltyWithZeroLimit(t *testing.T) {
	if hoursPenalty(0, 0) != 0 {
		t.Fatalf("no play with zero limit should not be penalised")
	}
	if hoursPenalty(0.1, 0) != 1 {
		t.Fatalf("any play with zero limit should be fully penalised")
	}
}
