package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yuqie6/PlayPulse/internal/eventbus"
	"github.com/yuqie6/PlayPulse/internal/pkg/clock"
	"github.com/yuqie6/PlayPulse/internal/schema"
)

// DefaultCompletionistTypes 允许导入时长的“全收集”类型
var DefaultCompletionistTypes = []string{"100%", "100_percent"}

// PlaythroughService 游玩计时状态机 + 会话账本
type PlaythroughService struct {
	repo    PlaythroughRepository
	ledger  SessionLedger
	metrics MetricsRecomputer
	events  EventPublisher
	cfg     *PlaythroughServiceConfig
	locks   *keyedMutex
}

// PlaythroughServiceConfig 状态机配置
type PlaythroughServiceConfig struct {
	CompletionistTypes []string
	Location           *time.Location // 计算“今天”和日期字段的时区
	Clock              clock.Clock
}

// NewPlaythroughService 创建游玩服务；metrics/events 可为 nil
func NewPlaythroughService(
	repo PlaythroughRepository,
	ledger SessionLedger,
	metrics MetricsRecomputer,
	events EventPublisher,
	cfg *PlaythroughServiceConfig,
) *PlaythroughService {
	if cfg == nil {
		cfg = &PlaythroughServiceConfig{}
	}
	if len(cfg.CompletionistTypes) == 0 {
		cfg.CompletionistTypes = DefaultCompletionistTypes
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &PlaythroughService{
		repo:    repo,
		ledger:  ledger,
		metrics: metrics,
		events:  events,
		cfg:     cfg,
		locks:   newKeyedMutex(),
	}
}

// PlaythroughView 对外返回的游玩视图
type PlaythroughView struct {
	schema.Playthrough
	IsActive    bool `json:"is_active"`
	IsPaused    bool `json:"is_paused"`
	IsCompleted bool `json:"is_completed"`
	IsDropped   bool `json:"is_dropped"`

	// 仅 end-session 返回：新写入的会话 ID
	LastSessionHistoryID *int64 `json:"last_session_history_id,omitempty"`
}

func newView(p *schema.Playthrough) *PlaythroughView {
	return &PlaythroughView{
		Playthrough: *p,
		IsActive:    p.State == schema.StateActive,
		IsPaused:    p.State == schema.StatePaused,
		IsCompleted: p.State == schema.StateCompleted,
		IsDropped:   p.State == schema.StateDropped,
	}
}

// CreatePlaythroughInput 创建参数
type CreatePlaythroughInput struct {
	UserID          int64
	GameID          int64
	PlaythroughType string
	Title           string
	Platform        string
	StartDate       string // YYYY-MM-DD，可空
}

// Create 创建游玩记录
func (s *PlaythroughService) Create(ctx context.Context, in CreatePlaythroughInput) (*PlaythroughView, error) {
	if in.UserID <= 0 || in.GameID <= 0 {
		return nil, fmt.Errorf("%w: user_id/game_id 不能为空", ErrValidation)
	}
	typ := strings.TrimSpace(in.PlaythroughType)
	if typ == "" {
		typ = "story"
	}
	if in.StartDate != "" {
		if _, err := time.ParseInLocation("2006-01-02", in.StartDate, s.cfg.Location); err != nil {
			return nil, fmt.Errorf("%w: start_date 格式应为 YYYY-MM-DD", ErrValidation)
		}
	}
	p := &schema.Playthrough{
		UserID:          in.UserID,
		GameID:          in.GameID,
		PlaythroughType: typ,
		Title:           strings.TrimSpace(in.Title),
		Platform:        strings.TrimSpace(in.Platform),
		State:           schema.StateNotStarted,
		StartDate:       in.StartDate,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("创建游玩记录", "playthrough_id", p.ID, "user_id", p.UserID, "game_id", p.GameID)
	return newView(p), nil
}

// Get 查询单条
func (s *PlaythroughService) Get(ctx context.Context, id int64) (*PlaythroughView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newView(p), nil
}

// ListByUser 列出用户的游玩记录
func (s *PlaythroughService) ListByUser(ctx context.Context, userID int64) ([]PlaythroughView, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]PlaythroughView, 0, len(list))
	for i := range list {
		out = append(out, *newView(&list[i]))
	}
	return out, nil
}

// Delete 删除游玩记录（连带会话）
func (s *PlaythroughService) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(playthroughKey(id))
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("删除游玩记录", "playthrough_id", id)
	return nil
}

// ListSessions 按编号升序列出会话账本
func (s *PlaythroughService) ListSessions(ctx context.Context, id int64) ([]schema.SessionHistory, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.ListByPlaythrough(ctx, id)
}

// Start 开始或从暂停恢复
func (s *PlaythroughService) Start(ctx context.Context, id int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "start", func(p *schema.Playthrough, now time.Time) error {
		return applyStart(p, now)
	})
}

// Pause 暂停并提交本段时长
func (s *PlaythroughService) Pause(ctx context.Context, id int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "pause", func(p *schema.Playthrough, now time.Time) error {
		return applyPause(p, now)
	})
}

// Stop 标记完成
func (s *PlaythroughService) Stop(ctx context.Context, id int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "stop", func(p *schema.Playthrough, now time.Time) error {
		return applyStop(p, now, s.cfg.Location)
	})
}

// Drop 放弃
func (s *PlaythroughService) Drop(ctx context.Context, id int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "drop", func(p *schema.Playthrough, now time.Time) error {
		return applyDrop(p, now, s.cfg.Location)
	})
}

// Pickup 重新拾起已放弃的游玩，累计时长保留
func (s *PlaythroughService) Pickup(ctx context.Context, id int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "pickup", func(p *schema.Playthrough, now time.Time) error {
		return applyPickup(p, now)
	})
}

// UpdateDuration 手动下调累计时长
func (s *PlaythroughService) UpdateDuration(ctx context.Context, id int64, seconds int64) (*PlaythroughView, error) {
	return s.transition(ctx, id, "update_duration", func(p *schema.Playthrough, _ time.Time) error {
		return applyUpdateDuration(p, seconds)
	})
}

// UpdatePlatform 修改平台
func (s *PlaythroughService) UpdatePlatform(ctx context.Context, id int64, platform string) (*PlaythroughView, error) {
	return s.transition(ctx, id, "update_platform", func(p *schema.Playthrough, _ time.Time) error {
		p.Platform = strings.TrimSpace(platform)
		return nil
	})
}

// UpdateTitle 修改标题
func (s *PlaythroughService) UpdateTitle(ctx context.Context, id int64, title string) (*PlaythroughView, error) {
	return s.transition(ctx, id, "update_title", func(p *schema.Playthrough, _ time.Time) error {
		p.Title = strings.TrimSpace(title)
		return nil
	})
}

// EndSession 结束当前会话，写入账本，并尽力重算当天健康指标
func (s *PlaythroughService) EndSession(ctx context.Context, id int64) (*PlaythroughView, error) {
	var now time.Time
	view, userID, err := func() (*PlaythroughView, int64, error) {
		unlock := s.locks.Lock(playthroughKey(id))
		defer unlock()

		// 持锁后再取时间，保证不早于并发 Start 写下的锚点
		now = s.cfg.Clock.Now()
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		hist, err := applyEndSession(p, now)
		if err != nil {
			return nil, 0, err
		}

		if hist != nil {
			if err := s.ledger.Append(ctx, p, hist); err != nil {
				return nil, 0, err
			}
			slog.Info("写入会话记录",
				"playthrough_id", id,
				"session_number", hist.SessionNumber,
				"duration_sec", hist.DurationSeconds,
				"pauses", hist.PauseCount)
		} else if err := s.repo.Save(ctx, p); err != nil {
			return nil, 0, err
		}

		v := newView(p)
		if hist != nil {
			hid := hist.ID
			v.LastSessionHistoryID = &hid
		}
		slog.Info("结束会话", "playthrough_id", id, "session_count", p.SessionCount)
		s.publish(eventbus.TypeSessionEnded, p, map[string]any{"session_history_id": v.LastSessionHistoryID})
		return v, p.UserID, nil
	}()
	if err != nil {
		return nil, err
	}

	// 状态已落库；重算失败只记录日志，不影响本次结果
	if s.metrics != nil {
		date := now.In(s.cfg.Location).Format("2006-01-02")
		if _, err := s.metrics.Recompute(ctx, userID, date); err != nil {
			slog.Error("会话结束后重算健康指标失败", "user_id", userID, "date", date, "error", err)
		}
	}
	return view, nil
}

// LogManualSession 补录一段历史会话，按开始时间插入账本并重编号
func (s *PlaythroughService) LogManualSession(ctx context.Context, id int64, start, end time.Time) (*PlaythroughView, error) {
	unlock := s.locks.Lock(playthroughKey(id))
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkManualSession(p, start, end, s.cfg.Location); err != nil {
		return nil, err
	}

	existing, err := s.ledger.ListByPlaythrough(ctx, id)
	if err != nil {
		return nil, err
	}
	hist := &schema.SessionHistory{
		PlaythroughID:   id,
		SessionNumber:   ledgerInsertPosition(existing, start.UnixMilli()),
		DurationSeconds: int64(end.Sub(start) / time.Second),
		StartedAt:       start.UnixMilli(),
		EndedAt:         end.UnixMilli(),
	}
	applyManualSession(p, start, end)

	if err := s.ledger.InsertAt(ctx, p, hist); err != nil {
		return nil, err
	}
	slog.Info("补录会话", "playthrough_id", id, "session_number", hist.SessionNumber, "duration_sec", hist.DurationSeconds)
	s.publish(eventbus.TypeSessionLogged, p, map[string]any{"session_history_id": hist.ID})
	return newView(p), nil
}

// DeleteSession 删除一条会话，后续编号前移，累计时长扣减
func (s *PlaythroughService) DeleteSession(ctx context.Context, id int64, sessionID int64) (*PlaythroughView, error) {
	unlock := s.locks.Lock(playthroughKey(id))
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	hist, err := s.ledger.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if hist == nil {
		return nil, fmt.Errorf("%w: 会话 %d", ErrNotFound, sessionID)
	}
	if hist.PlaythroughID != id {
		return nil, fmt.Errorf("%w: 会话不属于该游玩", ErrValidation)
	}

	applySessionRemoval(p, hist)
	if err := s.ledger.Remove(ctx, p, hist); err != nil {
		return nil, err
	}
	slog.Info("删除会话", "playthrough_id", id, "session_id", sessionID,
		"session_count", p.SessionCount, "duration_sec", p.DurationSeconds)
	s.publish(eventbus.TypeSessionDeleted, p, map[string]any{"session_history_id": sessionID})
	return newView(p), nil
}

// ImportSessions 把来源游玩的累计时长一次性导入到目标（全收集）游玩
func (s *PlaythroughService) ImportSessions(ctx context.Context, targetID, sourceID int64) (*PlaythroughView, error) {
	unlock := s.locks.Lock(playthroughKey(targetID))
	defer unlock()

	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	source, err := s.load(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := applyImport(target, source, s.cfg.CompletionistTypes); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, target); err != nil {
		return nil, err
	}
	slog.Info("导入游玩时长", "target_id", targetID, "source_id", sourceID, "imported_sec", target.ImportedDurationSeconds)
	s.publish(eventbus.TypePlaythroughUpdated, target, nil)
	return newView(target), nil
}

// transition 串行化的读-改-写模板
func (s *PlaythroughService) transition(
	ctx context.Context,
	id int64,
	op string,
	fn func(p *schema.Playthrough, now time.Time) error,
) (*PlaythroughView, error) {
	unlock := s.locks.Lock(playthroughKey(id))
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p, s.cfg.Clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("游玩状态变更", "op", op, "playthrough_id", id, "state", p.State, "duration_sec", p.DurationSeconds)
	s.publish(eventbus.TypePlaythroughUpdated, p, map[string]any{"op": op})
	return newView(p), nil
}

func (s *PlaythroughService) load(ctx context.Context, id int64) (*schema.Playthrough, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: 游玩 %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *PlaythroughService) publish(typ string, p *schema.Playthrough, extra map[string]any) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"playthrough_id":   p.ID,
		"user_id":          p.UserID,
		"state":            string(p.State),
		"duration_seconds": p.DurationSeconds,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.events.Publish(eventbus.Event{Type: typ, Data: data})
}

func playthroughKey(id int64) string {
	return "playthrough:" + strconv.FormatInt(id, 10)
}
