package service

import (
	"fmt"
	"time"

	"github.com/yuqie6/PlayPulse/internal/schema"
)

// 计时状态机的纯函数部分：只改内存中的 playthrough，不触碰存储

// commitElapsed 把当前这段连续计时提交进累计时长（按秒截断，时钟回拨时不倒扣）
func commitElapsed(p *schema.Playthrough, nowMs int64) {
	if p.State == schema.StateActive && p.CurrentStartedAt > 0 {
		if elapsed := (nowMs - p.CurrentStartedAt) / 1000; elapsed > 0 {
			p.DurationSeconds += elapsed
		}
	}
	p.CurrentStartedAt = 0
}

// clearSessionBookkeeping 清空进行中会话的记账字段
func clearSessionBookkeeping(p *schema.Playthrough) {
	p.CurrentStartedAt = 0
	p.SessionAnchorTime = 0
	p.PauseCount = 0
	p.ManualTimeSet = false
}

func applyStart(p *schema.Playthrough, now time.Time) error {
	switch p.State {
	case schema.StateActive:
		return fmt.Errorf("%w: 已在计时中", ErrInvalidTransition)
	case schema.StateDropped:
		return fmt.Errorf("%w: 已放弃的游玩不能开始计时，请先重新拾起", ErrInvalidTransition)
	case schema.StateCompleted:
		return fmt.Errorf("%w: 已完成的游玩不能再开始计时", ErrInvalidTransition)
	case schema.StateNotStarted:
		// 新会话：锚定起点；从暂停恢复时不动锚点
		p.PauseCount = 0
		p.SessionAnchorDuration = p.DurationSeconds
		p.SessionAnchorTime = now.UnixMilli()
	}
	p.State = schema.StateActive
	p.CurrentStartedAt = now.UnixMilli()
	p.StoppedAt = 0
	return nil
}

func applyPause(p *schema.Playthrough, now time.Time) error {
	if p.State != schema.StateActive {
		return fmt.Errorf("%w: 未在计时中，无法暂停", ErrInvalidTransition)
	}
	commitElapsed(p, now.UnixMilli())
	p.State = schema.StatePaused
	p.PauseCount++
	p.LastPlayedAt = now.UnixMilli()
	return nil
}

// checkFinishable stop/drop 的共同前置条件
func checkFinishable(p *schema.Playthrough, verb string) error {
	switch p.State {
	case schema.StateCompleted:
		return fmt.Errorf("%w: 已完成的游玩不能%s", ErrInvalidTransition, verb)
	case schema.StateDropped:
		return fmt.Errorf("%w: 已放弃的游玩不能%s", ErrInvalidTransition, verb)
	case schema.StateNotStarted:
		if p.DurationSeconds <= 0 {
			return fmt.Errorf("%w: 尚无任何游玩时长", ErrInvalidTransition)
		}
	}
	return nil
}

// finish stop/drop 共用的收尾：提交计时、写结束日期；未结束的会话不入账本
func finish(p *schema.Playthrough, now time.Time, loc *time.Location, state schema.PlaythroughState) {
	commitElapsed(p, now.UnixMilli())
	clearSessionBookkeeping(p)
	p.State = state
	p.StoppedAt = now.UnixMilli()
	p.EndDate = now.In(loc).Format("2006-01-02")
	p.LastPlayedAt = now.UnixMilli()
}

func applyStop(p *schema.Playthrough, now time.Time, loc *time.Location) error {
	if err := checkFinishable(p, "标记完成"); err != nil {
		return err
	}
	finish(p, now, loc, schema.StateCompleted)
	return nil
}

func applyDrop(p *schema.Playthrough, now time.Time, loc *time.Location) error {
	if err := checkFinishable(p, "放弃"); err != nil {
		return err
	}
	finish(p, now, loc, schema.StateDropped)
	p.DroppedAt = now.UnixMilli()
	return nil
}

func applyPickup(p *schema.Playthrough, now time.Time) error {
	if p.State != schema.StateDropped {
		return fmt.Errorf("%w: 只有已放弃的游玩可以重新拾起", ErrInvalidTransition)
	}
	p.State = schema.StateNotStarted
	p.EndDate = ""
	p.StoppedAt = 0
	p.PickedUpAt = now.UnixMilli()
	return nil
}

// applyEndSession 结束当前会话；锚点存在时返回待入账的会话（编号已分配）
func applyEndSession(p *schema.Playthrough, now time.Time) (*schema.SessionHistory, error) {
	if !p.HasOpenSession() {
		return nil, fmt.Errorf("%w: 没有进行中或暂停中的会话", ErrInvalidTransition)
	}
	commitElapsed(p, now.UnixMilli())

	sessionDuration := p.DurationSeconds - p.SessionAnchorDuration
	if sessionDuration < 0 {
		sessionDuration = 0
	}

	// 手动改过时长时，结束时间按 锚点 + 累计时长 合成，而不是取当前时间
	var endedAt int64
	if p.ManualTimeSet && p.SessionAnchorTime > 0 {
		endedAt = p.SessionAnchorTime + p.DurationSeconds*1000
	} else {
		endedAt = now.UnixMilli()
	}

	var hist *schema.SessionHistory
	if p.SessionAnchorTime > 0 {
		hist = &schema.SessionHistory{
			PlaythroughID:   p.ID,
			SessionNumber:   p.SessionCount + 1,
			DurationSeconds: sessionDuration,
			PauseCount:      p.PauseCount,
			StartedAt:       p.SessionAnchorTime,
			EndedAt:         endedAt,
		}
		p.SessionCount++
	}

	clearSessionBookkeeping(p)
	p.State = schema.StateNotStarted
	p.LastPlayedAt = endedAt
	return hist, nil
}

// applyUpdateDuration 手动修正时长，只允许往下调
func applyUpdateDuration(p *schema.Playthrough, seconds int64) error {
	if p.State == schema.StateActive {
		return fmt.Errorf("%w: 计时中不能手动修改时长", ErrInvalidTransition)
	}
	if seconds < 0 {
		return fmt.Errorf("%w: 时长不能为负数", ErrValidation)
	}
	if seconds > p.DurationSeconds {
		return fmt.Errorf("%w: 时长只能调小（当前 %ds，请求 %ds）", ErrValidation, p.DurationSeconds, seconds)
	}
	p.DurationSeconds = seconds
	p.ManualTimeSet = true
	if p.SessionAnchorDuration > p.DurationSeconds {
		p.SessionAnchorDuration = p.DurationSeconds
	}
	return nil
}

// checkManualSession 手动补录会话的前置校验
func checkManualSession(p *schema.Playthrough, start, end time.Time, loc *time.Location) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: 开始时间必须早于结束时间", ErrValidation)
	}
	switch p.State {
	case schema.StateActive:
		return fmt.Errorf("%w: 会话进行中不能补录，请先结束当前会话", ErrInvalidTransition)
	case schema.StateCompleted:
		return fmt.Errorf("%w: 已完成的游玩不能补录会话", ErrInvalidTransition)
	case schema.StateDropped:
		return fmt.Errorf("%w: 已放弃的游玩不能补录会话", ErrInvalidTransition)
	}
	if p.StartDate != "" && start.In(loc).Format("2006-01-02") < p.StartDate {
		return fmt.Errorf("%w: 会话不能早于游玩开始日期 %s", ErrValidation, p.StartDate)
	}
	return nil
}

// applyManualSession 补录会话后的累计字段
func applyManualSession(p *schema.Playthrough, start, end time.Time) {
	p.DurationSeconds += int64(end.Sub(start) / time.Second)
	p.SessionCount++
	if endMs := end.UnixMilli(); endMs > p.LastPlayedAt {
		p.LastPlayedAt = endMs
	}
}

// applySessionRemoval 删除会话后的累计字段
func applySessionRemoval(p *schema.Playthrough, removed *schema.SessionHistory) {
	if p.SessionCount > 0 {
		p.SessionCount--
	}
	p.DurationSeconds -= removed.DurationSeconds
	if p.DurationSeconds < 0 {
		p.DurationSeconds = 0
	}
	if p.SessionAnchorDuration > p.DurationSeconds {
		p.SessionAnchorDuration = p.DurationSeconds
	}
}

// applyImport 一次性把来源的累计时长拷贝到目标（不建立实时关联）
func applyImport(target, source *schema.Playthrough, completionistTypes []string) error {
	if target.ID == source.ID {
		return fmt.Errorf("%w: 不能从自身导入", ErrValidation)
	}
	if !containsType(completionistTypes, target.PlaythroughType) {
		return fmt.Errorf("%w: 只能导入到全收集类型的游玩", ErrInvalidTransition)
	}
	if target.ImportedFromPlaythroughID != nil {
		return fmt.Errorf("%w: 该游玩已导入过一次，不能重复导入", ErrInvalidTransition)
	}
	if target.GameID != source.GameID {
		return fmt.Errorf("%w: 不能从其它游戏的游玩导入", ErrInvalidTransition)
	}
	if target.State == schema.StateActive {
		return fmt.Errorf("%w: 目标游玩计时中，不能导入", ErrInvalidTransition)
	}
	if source.DurationSeconds <= 0 {
		return fmt.Errorf("%w: 来源游玩没有可导入的时长", ErrInvalidTransition)
	}

	target.DurationSeconds += source.DurationSeconds
	srcID := source.ID
	target.ImportedFromPlaythroughID = &srcID
	target.ImportedDurationSeconds = source.DurationSeconds
	if source.LastPlayedAt > target.LastPlayedAt {
		target.LastPlayedAt = source.LastPlayedAt
	}
	return nil
}

func containsType(types []string, t string) bool {
	for _, it := range types {
		if it == t {
			return true
		}
	}
	return false
}
