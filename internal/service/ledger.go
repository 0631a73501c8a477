package service

import "github.com/yuqie6/PlayPulse/internal/schema"

// ledgerInsertPosition 计算新会话的 1 起始编号：
// 按 session_number 顺序扫描，插在第一条开始时间晚于 startMs 的会话之前
func ledgerInsertPosition(existing []schema.SessionHistory, startMs int64) int {
	pos := 1
	for _, s := range existing {
		if startMs < s.StartedAt {
			break
		}
		pos++
	}
	return pos
}
