package service

import (
	"fmt"
	"time"
)

// FormatTimeRangeMs 以 "2006-01-02 15:04-15:04" 展示会话起止；跨天时结束带日期
func FormatTimeRangeMs(startMs, endMs int64, loc *time.Location) string {
	if startMs <= 0 || endMs <= 0 || endMs <= startMs {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	start := time.UnixMilli(startMs).In(loc)
	end := time.UnixMilli(endMs).In(loc)
	if start.Format("2006-01-02") != end.Format("2006-01-02") {
		return start.Format("2006-01-02 15:04") + " - " + end.Format("2006-01-02 15:04")
	}
	return start.Format("2006-01-02 15:04") + "-" + end.Format("15:04")
}

// FormatDuration 秒数转 "1h 05m"
func FormatDuration(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%dh %02dm", sec/3600, (sec%3600)/60)
}
