package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yuqie6/PlayPulse/internal/pkg/clock"
	"github.com/yuqie6/PlayPulse/internal/repository"
	"github.com/yuqie6/PlayPulse/internal/schema"
	"github.com/yuqie6/PlayPulse/internal/testutil"
	"gorm.io/gorm"
)

type wellnessFixture struct {
	db       *gorm.DB
	svc      *WellnessService
	metrics  *repository.MetricsRepository
	users    *repository.UserRepository
	settings *repository.HealthSettingsRepository
	clk      *clock.Fixed
}

func newWellnessFixture(t *testing.T, now time.Time) *wellnessFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	f := &wellnessFixture{
		db:       db,
		metrics:  repository.NewMetricsRepository(db),
		users:    repository.NewUserRepository(db),
		settings: repository.NewHealthSettingsRepository(db),
		clk:      &clock.Fixed{T: now},
	}
	f.svc = NewWellnessService(
		repository.NewSessionHistoryRepository(db),
		repository.NewMoodRepository(db),
		f.metrics,
		f.users,
		f.settings,
		&WellnessServiceConfig{Location: time.UTC, Clock: f.clk, BackfillWorkers: 2},
	)
	return f
}

// seedSession 直接写库，绕开状态机
func (f *wellnessFixture) seedSession(t *testing.T, userID int64, start time.Time, d time.Duration, pauses int) *schema.SessionHistory {
	t.Helper()
	p := &schema.Playthrough{UserID: userID, GameID: 1, PlaythroughType: "story", State: schema.StateNotStarted}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("seed playthrough: %v", err)
	}
	s := session(start, d, pauses)
	s.PlaythroughID = p.ID
	s.SessionNumber = 1
	if err := f.db.Create(&s).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return &s
}

func TestWellnessRecomputeNoSessionsIsNoop(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	m, err := f.svc.Recompute(ctx, 1, "2025-01-01")
	if err != nil || m != nil {
		t.Fatalf("expected no-op, got %+v %v", m, err)
	}
	got, _ := f.metrics.GetByDate(ctx, 1, "2025-01-01")
	if got != nil {
		t.Fatalf("no row should be written")
	}

	if _, err := f.svc.Recompute(ctx, 1, "2025/01/01"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad date: expected ErrValidation, got %v", err)
	}
}

func TestWellnessRecomputeAttributesMidnightSessionToBothDays(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC), 2*time.Hour, 0)

	for _, date := range []string{"2025-01-01", "2025-01-02"} {
		m, err := f.svc.Recompute(ctx, 1, date)
		if err != nil || m == nil {
			t.Fatalf("%s: %+v %v", date, m, err)
		}
		if m.TotalHours != 2 || m.HealthScore != 48 || m.LateNightMinutes != 120 {
			t.Fatalf("%s: unexpected metrics %+v", date, m)
		}
	}
	if m, _ := f.svc.Recompute(ctx, 1, "2025-01-03"); m != nil {
		t.Fatalf("session does not overlap 01-03")
	}
}

func TestWellnessRecomputeIsIdempotentAndUsesAge(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC), 2*time.Hour, 1)

	adult, err := f.svc.Recompute(ctx, 1, "2025-01-01")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	again, _ := f.svc.Recompute(ctx, 1, "2025-01-01")
	if again.HealthScore != adult.HealthScore {
		t.Fatalf("recompute should replace the same row with the same value")
	}

	age := 10
	if err := f.users.UpsertAge(ctx, 1, &age); err != nil {
		t.Fatalf("UpsertAge: %v", err)
	}
	child, _ := f.svc.Recompute(ctx, 1, "2025-01-01")
	if child.MaxHoursPerDay != 2 || child.HealthScore >= adult.HealthScore {
		t.Fatalf("child limit should lower score: adult=%d child=%d", adult.HealthScore, child.HealthScore)
	}

	rows, _ := f.metrics.ListByDateRange(ctx, 1, "2025-01-01", "2025-01-01")
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
}

func TestWellnessBackfillOnlyMissingDates(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC), time.Hour, 0)
	f.seedSession(t, 1, time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC), time.Hour, 0)
	f.seedSession(t, 2, time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC), time.Hour, 0)

	if _, err := f.svc.Recompute(ctx, 1, "2025-01-03"); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	res, err := f.svc.Backfill(ctx, 1, "2025-01-01", "2025-01-10")
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if strings.Join(res.Recomputed, ",") != "2025-01-05,2025-01-06" {
		t.Fatalf("unexpected recomputed dates: %v", res.Recomputed)
	}
	dates, _ := f.metrics.ListDates(ctx, 1, "2025-01-01", "2025-01-10")
	if len(dates) != 3 {
		t.Fatalf("expected 3 metric rows, got %v", dates)
	}

	again, _ := f.svc.Backfill(ctx, 1, "2025-01-01", "2025-01-10")
	if len(again.Recomputed) != 0 {
		t.Fatalf("second backfill should be a no-op, got %v", again.Recomputed)
	}
}

func TestWellnessBackfillClampsLookback(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	f.svc.cfg.BackfillMaxDays = 5
	res, err := f.svc.Backfill(context.Background(), 1, "2024-01-01", "2025-01-10")
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if res.From != "2025-01-06" {
		t.Fatalf("expected clamped start 2025-01-06, got %s", res.From)
	}
}

func TestWellnessSubmitMood(t *testing.T) {
	now := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	f := newWellnessFixture(t, now)
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC), 30*time.Minute, 0)

	if _, _, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 6}); !errors.Is(err, ErrValidation) {
		t.Fatalf("rating 6: expected ErrValidation, got %v", err)
	}
	long := strings.Repeat("好", maxMoodNoteLen+1)
	if _, _, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 3, Note: long}); !errors.Is(err, ErrValidation) {
		t.Fatalf("long note: expected ErrValidation, got %v", err)
	}
	missing := int64(404)
	if _, _, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 3, SessionHistoryID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session: expected ErrNotFound, got %v", err)
	}

	_, before, _ := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 1})
	_, after, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 5})
	if err != nil || before == nil || after == nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	if after.AverageMood == nil || *after.AverageMood != 3 {
		t.Fatalf("expected average mood 3, got %v", after.AverageMood)
	}
	if after.HealthScore <= before.HealthScore {
		t.Fatalf("better mood should raise score: %d -> %d", before.HealthScore, after.HealthScore)
	}
}

func TestWellnessDashboard(t *testing.T) {
	// 2025-01-08 是周三
	f := newWellnessFixture(t, time.Date(2025, 1, 8, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC), time.Hour, 0)
	f.seedSession(t, 1, time.Date(2025, 1, 8, 14, 0, 0, 0, time.UTC), 2*time.Hour, 1)
	f.seedSession(t, 1, time.Date(2024, 12, 20, 14, 0, 0, 0, time.UTC), time.Hour, 0)
	if _, err := f.svc.Recompute(ctx, 1, "2024-12-20"); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	d, err := f.svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.WeekStart != "2025-01-06" {
		t.Fatalf("week start = %s", d.WeekStart)
	}
	if len(d.Week) != 2 || d.Today == nil || d.Today.MetricDate != "2025-01-08" {
		t.Fatalf("unexpected week: %+v today=%v", d.Week, d.Today)
	}
	if d.Weekly.TotalHours != 3 || d.Weekly.SessionCount != 2 {
		t.Fatalf("unexpected weekly aggregate: %+v", d.Weekly)
	}
	if d.WeeklyAverage == nil {
		t.Fatalf("weekly average missing")
	}
	if len(d.YearlyHeatmap) != 2 {
		t.Fatalf("heatmap should only cover this calendar year, got %v", d.YearlyHeatmap)
	}
	if _, ok := d.YearlyHeatmap["2024-12-20"]; ok {
		t.Fatalf("last year's row leaked into the heatmap: %v", d.YearlyHeatmap)
	}
	if d.GoalProgress.GoalsEnabled || d.GoalProgress.HoursToday != 2 || d.GoalProgress.HoursThisWeek != 3 {
		t.Fatalf("default settings should report progress with goals off: %+v", d.GoalProgress)
	}
	if len(d.RecentSessions) != 2 {
		t.Fatalf("expected this week's 2 sessions, got %+v", d.RecentSessions)
	}
	if d.MaxHoursPerDay != 3 {
		t.Fatalf("default age limits expected")
	}
}

func TestWellnessDashboardHeatmapStartsOnJanuaryFirst(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 6, 11, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC), time.Hour, 0)
	f.seedSession(t, 1, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), time.Hour, 0)
	f.seedSession(t, 1, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), time.Hour, 0)
	for _, date := range []string{"2024-12-31", "2025-01-01"} {
		if _, err := f.svc.Recompute(ctx, 1, date); err != nil {
			t.Fatalf("Recompute %s: %v", date, err)
		}
	}

	d, err := f.svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if _, ok := d.YearlyHeatmap["2025-01-01"]; !ok {
		t.Fatalf("Jan 1 should be included: %v", d.YearlyHeatmap)
	}
	if _, ok := d.YearlyHeatmap["2025-06-10"]; !ok {
		t.Fatalf("backfilled day of this week should be included: %v", d.YearlyHeatmap)
	}
	if _, ok := d.YearlyHeatmap["2024-12-31"]; ok || len(d.YearlyHeatmap) != 2 {
		t.Fatalf("heatmap should start on Jan 1: %v", d.YearlyHeatmap)
	}
}

func TestWellnessDashboardGoalProgressAndRecentSessions(t *testing.T) {
	// 2025-01-08 是周三
	f := newWellnessFixture(t, time.Date(2025, 1, 8, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.seedSession(t, 1, time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC), time.Hour, 0)
	afternoon := f.seedSession(t, 1, time.Date(2025, 1, 8, 14, 0, 0, 0, time.UTC), 2*time.Hour, 1)
	evening := f.seedSession(t, 1, time.Date(2025, 1, 8, 17, 0, 0, 0, time.UTC), 30*time.Minute, 0)

	on := true
	daily, sessions, weekly := 1.5, 1, 2.5
	if _, err := f.svc.UpdateSettings(ctx, 1, SettingsPatch{
		GoalsEnabled:             &on,
		MaxHoursPerDayEnabled:    &on,
		MaxHoursPerDay:           &daily,
		MaxSessionsPerDayEnabled: &on,
		MaxSessionsPerDay:        &sessions,
		MaxHoursPerWeekEnabled:   &on,
		MaxHoursPerWeek:          &weekly,
	}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if _, _, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 2, SessionHistoryID: &afternoon.ID}); err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}
	f.clk.Advance(time.Minute)
	if _, _, err := f.svc.SubmitMood(ctx, SubmitMoodInput{UserID: 1, MoodRating: 4, SessionHistoryID: &afternoon.ID}); err != nil {
		t.Fatalf("SubmitMood: %v", err)
	}

	d, err := f.svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	g := d.GoalProgress
	if !g.GoalsEnabled || g.HoursToday != 2.5 || g.SessionsToday != 2 || g.HoursThisWeek != 3.5 {
		t.Fatalf("unexpected goal progress: %+v", g)
	}
	if g.MaxHoursPerDay == nil || *g.MaxHoursPerDay != 1.5 || g.MaxSessionsPerDay == nil || *g.MaxSessionsPerDay != 1 || g.MaxHoursPerWeek == nil || *g.MaxHoursPerWeek != 2.5 {
		t.Fatalf("goal targets should come from settings: %+v", g)
	}
	if !g.ExceedsAny() {
		t.Fatal("2.5h today is over the 1.5h goal")
	}

	if len(d.RecentSessions) != 3 {
		t.Fatalf("expected 3 recent sessions, got %+v", d.RecentSessions)
	}
	if d.RecentSessions[0].SessionID != evening.ID || d.RecentSessions[0].MoodRating != nil {
		t.Fatalf("latest session first without mood: %+v", d.RecentSessions[0])
	}
	second := d.RecentSessions[1]
	if second.SessionID != afternoon.ID || second.MoodRating == nil || *second.MoodRating != 4 {
		t.Fatalf("session should carry its latest mood: %+v", second)
	}

	// 评分只看年龄段上限，目标不参与
	if d.Today == nil || d.Today.MaxHoursPerDay != 3 {
		t.Fatalf("scoring limit should stay age based: %+v", d.Today)
	}
}

func TestGoalProgressExceedsAnyRespectsSwitches(t *testing.T) {
	limit := 1.0
	g := GoalProgress{HoursToday: 2, MaxHoursPerDay: &limit, MaxHoursPerDayEnabled: true}
	if g.ExceedsAny() {
		t.Fatal("goals switched off should never report exceeded")
	}
	g.GoalsEnabled = true
	if !g.ExceedsAny() {
		t.Fatal("enabled daily goal is exceeded")
	}
	g.MaxHoursPerDayEnabled = false
	if g.ExceedsAny() {
		t.Fatal("disabled daily goal should be ignored")
	}
}

func TestWellnessSettingsDefaultsAndValidation(t *testing.T) {
	f := newWellnessFixture(t, time.Date(2025, 1, 8, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()

	got, err := f.svc.GetSettings(ctx, 5)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.UserID != 5 || got.BreakIntervalMinutes != 50 || got.BreakDurationMinutes != 10 || !got.MoodPromptEnabled || got.GoalsEnabled {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if stored, _ := f.settings.Get(ctx, 5); stored != nil {
		t.Fatal("reading defaults must not write a row")
	}

	on := true
	if _, err := f.svc.UpdateSettings(ctx, 5, SettingsPatch{MaxHoursPerDayEnabled: &on}); !errors.Is(err, ErrValidation) {
		t.Fatalf("enabled goal without target: expected ErrValidation, got %v", err)
	}
	zero := 0
	if _, err := f.svc.UpdateSettings(ctx, 5, SettingsPatch{BreakIntervalMinutes: &zero}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero interval: expected ErrValidation, got %v", err)
	}
	tooMany := 25.0
	if _, err := f.svc.UpdateSettings(ctx, 5, SettingsPatch{MaxHoursPerDay: &tooMany}); !errors.Is(err, ErrValidation) {
		t.Fatalf("25h/day: expected ErrValidation, got %v", err)
	}
	if stored, _ := f.settings.Get(ctx, 5); stored != nil {
		t.Fatal("rejected updates must not write a row")
	}

	interval := 45
	if _, err := f.svc.UpdateSettings(ctx, 5, SettingsPatch{BreakReminderEnabled: &on, BreakIntervalMinutes: &interval}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	off := false
	got, err = f.svc.UpdateSettings(ctx, 5, SettingsPatch{MoodPromptEnabled: &off})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !got.BreakReminderEnabled || got.BreakIntervalMinutes != 45 || got.MoodPromptEnabled || got.HydrationIntervalMinutes != 30 {
		t.Fatalf("patch should merge onto saved settings: %+v", got)
	}
}

func TestWeekStart(t *testing.T) {
	sunday := time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)
	if got := weekStart(sunday).Format("2006-01-02"); got != "2025-01-06" {
		t.Fatalf("sunday belongs to the week starting 01-06, got %s", got)
	}
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	if got := weekStart(monday).Format("2006-01-02"); got != "2025-01-06" {
		t.Fatalf("monday maps to itself, got %s", got)
	}
}
