package repository

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DayRange 将 YYYY-MM-DD 解析为 loc 下的日区间毫秒时间戳 [start, next)（左闭右开）。
// 跨夏令时的日子长度不一定是 24h，因此用 AddDate 而不是加固定时长。
func DayRange(date string, loc *time.Location) (startMs int64, nextMs int64, err error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	return t.UnixMilli(), t.AddDate(0, 0, 1).UnixMilli(), nil
}

// DateRange 将 [from, to] 两个日期解析为毫秒区间 [start, next)，to 当天包含在内。
func DateRange(from, to string, loc *time.Location) (startMs int64, nextMs int64, err error) {
	startMs, _, err = DayRange(from, loc)
	if err != nil {
		return 0, 0, err
	}
	_, nextMs, err = DayRange(to, loc)
	if err != nil {
		return 0, 0, err
	}
	if nextMs <= startMs {
		return 0, 0, fmt.Errorf("日期范围无效: %s ~ %s", from, to)
	}
	return startMs, nextMs, nil
}

// FormatDate 将时间格式化为 loc 下的 YYYY-MM-DD
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}
