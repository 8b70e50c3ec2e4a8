package events

import "time"

// ConversationLogEvent 会话日志文件变更事件
// 当会话日志目录下的 *.jsonl 文件发生变更时触发
type ConversationLogEvent struct {
	// EventType 事件类型（created/modified/deleted）
	EventType EventType
	// FilePath 文件完整路径
	FilePath string
	// ModTime 文件最后修改时间
	ModTime time.Time
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *ConversationLogEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *ConversationLogEvent) Timestamp() time.Time {
	return e.EventTime
}
