package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuqie6/PlayPulse/internal/pkg/clock"
	"github.com/yuqie6/PlayPulse/internal/repository"
	"github.com/yuqie6/PlayPulse/internal/schema"
	"golang.org/x/sync/errgroup"
)

const (
	maxMoodNoteLen     = 500
	recentMoodLimit    = 10
	recentSessionLimit = 10
)

// WellnessService 每日健康指标引擎
type WellnessService struct {
	sessions SessionLedger
	moods    MoodRepository
	metrics  MetricsRepository
	ages     AgeLookup
	settings HealthSettingsStore
	cfg      *WellnessServiceConfig
	locks    *keyedMutex
}

// WellnessServiceConfig 指标引擎配置
type WellnessServiceConfig struct {
	DefaultAge      int
	Location        *time.Location
	BackfillMaxDays int // 回填最大回溯天数
	BackfillWorkers int
	Clock           clock.Clock
}

// NewWellnessService 创建指标引擎；ages 可为 nil（全部按默认年龄），settings 可为 nil（只读默认设置）
func NewWellnessService(
	sessions SessionLedger,
	moods MoodRepository,
	metrics MetricsRepository,
	ages AgeLookup,
	settings HealthSettingsStore,
	cfg *WellnessServiceConfig,
) *WellnessService {
	if cfg == nil {
		cfg = &WellnessServiceConfig{}
	}
	if cfg.DefaultAge <= 0 {
		cfg.DefaultAge = defaultUserAge
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.BackfillMaxDays <= 0 {
		cfg.BackfillMaxDays = 366
	}
	if cfg.BackfillWorkers <= 0 {
		cfg.BackfillWorkers = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &WellnessService{
		sessions: sessions,
		moods:    moods,
		metrics:  metrics,
		ages:     ages,
		settings: settings,
		cfg:      cfg,
		locks:    newKeyedMutex(),
	}
}

// Today 引擎时区下的今天
func (s *WellnessService) Today() string {
	return repository.FormatDate(s.cfg.Clock.Now(), s.cfg.Location)
}

// Recompute 重算 (user, date) 的指标并整行覆盖；当天没有会话时不写入，返回 nil
func (s *WellnessService) Recompute(ctx context.Context, userID int64, date string) (*schema.DailyMetrics, error) {
	startMs, nextMs, err := repository.DayRange(date, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	unlock := s.locks.Lock(metricsKey(userID, date))
	defer unlock()

	sessions, err := s.sessions.ListByUserOverlapping(ctx, userID, startMs, nextMs)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		slog.Debug("当天无会话，跳过指标重算", "user_id", userID, "date", date)
		return nil, nil
	}
	moods, err := s.moods.ListByUserRange(ctx, userID, startMs, nextMs)
	if err != nil {
		return nil, err
	}
	age, err := s.userAge(ctx, userID)
	if err != nil {
		return nil, err
	}

	m := ComputeDailyMetrics(DayInput{
		UserID:   userID,
		Date:     date,
		Age:      age,
		Sessions: sessions,
		Moods:    moods,
		Location: s.cfg.Location,
	})
	if err := s.metrics.Upsert(ctx, m); err != nil {
		return nil, err
	}
	slog.Info("健康指标已重算",
		"user_id", userID,
		"date", date,
		"score", m.HealthScore,
		"hours", m.TotalHours,
		"sessions", m.SessionCount,
		"late_night_min", m.LateNightMinutes)
	return m, nil
}

// GetDaily 查询单日指标（不存在返回 nil）
func (s *WellnessService) GetDaily(ctx context.Context, userID int64, date string) (*schema.DailyMetrics, error) {
	if _, _, err := repository.DayRange(date, s.cfg.Location); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.metrics.GetByDate(ctx, userID, date)
}

// ListRange 查询 [from, to] 的指标
func (s *WellnessService) ListRange(ctx context.Context, userID int64, from, to string) ([]schema.DailyMetrics, error) {
	if _, _, err := repository.DateRange(from, to, s.cfg.Location); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.metrics.ListByDateRange(ctx, userID, from, to)
}

// BackfillResult 回填结果
type BackfillResult struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Recomputed []string `json:"recomputed"`
}

// Backfill 为 [from, to] 内有会话但没有指标的日期补算；from 早于回溯窗口时被截断
func (s *WellnessService) Backfill(ctx context.Context, userID int64, from, to string) (*BackfillResult, error) {
	from = s.clampBackfillStart(from, to)
	startMs, nextMs, err := repository.DateRange(from, to, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sessions, err := s.sessions.ListByUserOverlapping(ctx, userID, startMs, nextMs)
	if err != nil {
		return nil, err
	}
	existing, err := s.metrics.ListDates(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	missing := missingDates(sessions, existing, from, to, s.cfg.Location)
	res := &BackfillResult{From: from, To: to, Recomputed: missing}
	if len(missing) == 0 {
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BackfillWorkers)
	for _, date := range missing {
		date := date
		g.Go(func() error {
			_, err := s.Recompute(gctx, userID, date)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("回填健康指标失败: %w", err)
	}
	slog.Info("健康指标回填完成", "user_id", userID, "from", from, "to", to, "days", len(missing))
	return res, nil
}

func (s *WellnessService) clampBackfillStart(from, to string) string {
	end, err := time.ParseInLocation("2006-01-02", to, s.cfg.Location)
	if err != nil {
		return from
	}
	earliest := end.AddDate(0, 0, -(s.cfg.BackfillMaxDays - 1)).Format("2006-01-02")
	if from < earliest {
		return earliest
	}
	return from
}

// missingDates 会话覆盖到、且位于 [from, to] 内、尚无指标的日期（升序）
func missingDates(sessions []schema.SessionHistory, existing map[string]struct{}, from, to string, loc *time.Location) []string {
	seen := make(map[string]struct{})
	for _, sess := range sessions {
		st := sess.Start().In(loc)
		day := time.Date(st.Year(), st.Month(), st.Day(), 0, 0, 0, 0, loc)
		end := sess.End()
		for !day.After(end) {
			d := day.Format("2006-01-02")
			if d >= from && d <= to {
				if _, ok := existing[d]; !ok {
					seen[d] = struct{}{}
				}
			}
			day = day.AddDate(0, 0, 1)
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// SubmitMoodInput 心情提交参数
type SubmitMoodInput struct {
	UserID           int64
	MoodRating       int
	SessionHistoryID *int64
	Note             string
}

// SubmitMood 记录心情并重算今天的指标
func (s *WellnessService) SubmitMood(ctx context.Context, in SubmitMoodInput) (*schema.MoodEntry, *schema.DailyMetrics, error) {
	if in.MoodRating < 1 || in.MoodRating > 5 {
		return nil, nil, fmt.Errorf("%w: 心情评分必须在 1-5 之间", ErrValidation)
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > maxMoodNoteLen {
		return nil, nil, fmt.Errorf("%w: 备注不能超过 %d 字", ErrValidation, maxMoodNoteLen)
	}
	if in.SessionHistoryID != nil {
		hist, err := s.sessions.GetByID(ctx, *in.SessionHistoryID)
		if err != nil {
			return nil, nil, err
		}
		if hist == nil {
			return nil, nil, fmt.Errorf("%w: 会话 %d", ErrNotFound, *in.SessionHistoryID)
		}
	}

	now := s.cfg.Clock.Now()
	entry := &schema.MoodEntry{
		UserID:           in.UserID,
		SessionHistoryID: in.SessionHistoryID,
		MoodRating:       in.MoodRating,
		Note:             note,
		RecordedAt:       now.UnixMilli(),
	}
	if err := s.moods.Create(ctx, entry); err != nil {
		return nil, nil, err
	}
	slog.Info("记录心情", "user_id", in.UserID, "rating", in.MoodRating)

	m, err := s.Recompute(ctx, in.UserID, repository.FormatDate(now, s.cfg.Location))
	if err != nil {
		return entry, nil, err
	}
	return entry, m, nil
}

// WeeklyAggregate 本周汇总
type WeeklyAggregate struct {
	TotalHours           float64  `json:"total_hours"`
	SessionCount         int      `json:"session_count"`
	AverageMood          *float64 `json:"average_mood"`
	BreakComplianceRatio float64  `json:"break_compliance_ratio"`
	LateNightMinutes     int64    `json:"late_night_minutes"`
}

// Dashboard 健康看板
type Dashboard struct {
	Today           *schema.DailyMetrics  `json:"today"`
	WeekStart       string                `json:"week_start"`
	Week            []schema.DailyMetrics `json:"week"`
	WeeklyAverage   *float64              `json:"weekly_average"`
	Weekly          WeeklyAggregate       `json:"weekly"`
	YearlyHeatmap   map[string]int        `json:"yearly_heatmap"`
	RecentMoods     []schema.MoodEntry    `json:"recent_moods"`
	RecentSessions  []RecentSession       `json:"recent_sessions"`
	GoalProgress    GoalProgress          `json:"goal_progress"`
	MaxHoursPerDay  float64               `json:"max_hours_per_day"`
	MaxHoursPerWeek float64               `json:"max_hours_per_week"`
}

// RecentSession 本周会话及其心情评分（没有关联心情时为 nil）
type RecentSession struct {
	SessionID       int64 `json:"session_id"`
	PlaythroughID   int64 `json:"playthrough_id"`
	SessionNumber   int   `json:"session_number"`
	DurationSeconds int64 `json:"duration_seconds"`
	StartedAt       int64 `json:"started_at"`
	EndedAt         int64 `json:"ended_at"`
	MoodRating      *int  `json:"mood_rating"`
}

// Dashboard 先回填本周（周一至今天），再汇总；热力图覆盖今年 1 月 1 日至今天
func (s *WellnessService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	now := s.cfg.Clock.Now().In(s.cfg.Location)
	today := now.Format("2006-01-02")
	monday := weekStart(now).Format("2006-01-02")
	jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, s.cfg.Location).Format("2006-01-02")

	if _, err := s.Backfill(ctx, userID, monday, today); err != nil {
		return nil, err
	}

	week, err := s.metrics.ListByDateRange(ctx, userID, monday, today)
	if err != nil {
		return nil, err
	}
	year, err := s.metrics.ListByDateRange(ctx, userID, jan1, today)
	if err != nil {
		return nil, err
	}
	weekStartMs, nextMs, err := repository.DateRange(monday, today, s.cfg.Location)
	if err != nil {
		return nil, err
	}
	moods, err := s.moods.ListByUserRange(ctx, userID, weekStartMs, nextMs)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByUserOverlapping(ctx, userID, weekStartMs, nextMs)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	age, err := s.userAge(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := LimitsForAge(age)

	d := &Dashboard{
		WeekStart:       monday,
		Week:            week,
		Weekly:          aggregateWeek(week),
		YearlyHeatmap:   make(map[string]int, len(year)),
		RecentSessions:  recentSessions(sessions, moods, recentSessionLimit),
		MaxHoursPerDay:  limits.MaxHoursPerDay,
		MaxHoursPerWeek: limits.MaxHoursPerWeek,
	}
	if len(moods) > recentMoodLimit {
		moods = moods[:recentMoodLimit]
	}
	d.RecentMoods = moods
	for i := range week {
		if week[i].MetricDate == today {
			d.Today = &week[i]
		}
	}
	d.GoalProgress = goalProgress(settings, d.Today, d.Weekly)
	if len(week) > 0 {
		sum := 0
		for _, m := range week {
			sum += m.HealthScore
		}
		avg := float64(sum) / float64(len(week))
		d.WeeklyAverage = &avg
	}
	for _, m := range year {
		d.YearlyHeatmap[m.MetricDate] = m.HealthScore
	}
	return d, nil
}

// recentSessions 按结束时间倒序取前 limit 条，并挂上该会话最近一次心情
func recentSessions(sessions []schema.SessionHistory, moods []schema.MoodEntry, limit int) []RecentSession {
	// moods 已按记录时间倒序，先出现的即最新
	bySession := make(map[int64]int, len(moods))
	for _, m := range moods {
		if m.SessionHistoryID == nil {
			continue
		}
		if _, ok := bySession[*m.SessionHistoryID]; !ok {
			bySession[*m.SessionHistoryID] = m.MoodRating
		}
	}

	sorted := make([]schema.SessionHistory, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EndedAt > sorted[j].EndedAt })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]RecentSession, 0, len(sorted))
	for _, sess := range sorted {
		rs := RecentSession{
			SessionID:       sess.ID,
			PlaythroughID:   sess.PlaythroughID,
			SessionNumber:   sess.SessionNumber,
			DurationSeconds: sess.DurationSeconds,
			StartedAt:       sess.StartedAt,
			EndedAt:         sess.EndedAt,
		}
		if rating, ok := bySession[sess.ID]; ok {
			rs.MoodRating = &rating
		}
		out = append(out, rs)
	}
	return out
}

func aggregateWeek(week []schema.DailyMetrics) WeeklyAggregate {
	var agg WeeklyAggregate
	if len(week) == 0 {
		agg.BreakComplianceRatio = 1.0
		return agg
	}
	var moodSum, breakSum float64
	moodDays := 0
	for _, m := range week {
		agg.TotalHours += m.TotalHours
		agg.SessionCount += m.SessionCount
		agg.LateNightMinutes += m.LateNightMinutes
		breakSum += m.BreakComplianceRatio
		if m.AverageMood != nil {
			moodSum += *m.AverageMood
			moodDays++
		}
	}
	agg.BreakComplianceRatio = breakSum / float64(len(week))
	if moodDays > 0 {
		avg := moodSum / float64(moodDays)
		agg.AverageMood = &avg
	}
	return agg
}

// weekStart 所在周的周一 00:00
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func (s *WellnessService) userAge(ctx context.Context, userID int64) (int, error) {
	if s.ages == nil {
		return s.cfg.DefaultAge, nil
	}
	age, err := s.ages.GetAge(ctx, userID)
	if err != nil {
		return 0, err
	}
	if age == nil || *age < 0 {
		return s.cfg.DefaultAge, nil
	}
	return *age, nil
}

func metricsKey(userID int64, date string) string {
	return "metrics:" + strconv.FormatInt(userID, 10) + ":" + date
}
