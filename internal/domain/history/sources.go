package history

// ConversationSource 会话日志读取边界
type ConversationSource interface {
	// ReadProjectMessages 读取某项目的全部消息（按元数据 project_id 过滤）
	ReadProjectMessages(projectID string) ([]Message, error)

	// ProjectTaskIDs 从会话元数据推导项目的权威任务集合
	ProjectTaskIDs(projectID string) (map[string]bool, error)
}

// EventSource 事件存储读取边界
type EventSource interface {
	// ReadEventsForTasks 读取任务集合内的代理事件
	ReadEventsForTasks(taskIDs map[string]bool) ([]AgentEvent, error)
}

// OutcomeSource 结果/档案存储读取边界
type OutcomeSource interface {
	// ReadOutcomesForTasks 读取任务集合内的任务结果
	ReadOutcomesForTasks(taskIDs map[string]bool) ([]TaskOutcome, error)

	// ReadProfilesForAgents 读取代理集合的长期绩效档案
	ReadProfilesForAgents(agentIDs map[string]bool) ([]AgentProfile, error)
}
