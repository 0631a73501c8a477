package clock

import "time"

// Clock 抽象当前时间，便于测试固定时刻
type Clock interface {
	Now() time.Time
}

// System 系统时钟
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed 固定时钟，可手动拨动（仅用于测试与回放）
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance 拨快 d
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
