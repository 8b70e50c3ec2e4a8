package history

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hindsight/backend/internal/domain/events"
	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// DefaultCacheTTL 聚合结果缓存的默认有效期
const DefaultCacheTTL = 60 * time.Second

// AggregatorService 调和各数据源为完整的 ProjectHistory
// 决策/产物来自持久化层，任务归属来自会话元数据（唯一权威来源），
// 事件/结果/档案来自记录存储且按任务集合过滤
type AggregatorService struct {
	persistence   *PersistenceService
	conversations domain.ConversationSource
	eventSource   domain.EventSource
	outcomeSource domain.OutcomeSource
	cache         *historyCache
	logger        *slog.Logger
}

// NewAggregatorService 创建聚合服务
func NewAggregatorService(
	persistence *PersistenceService,
	conversations domain.ConversationSource,
	eventSource domain.EventSource,
	outcomeSource domain.OutcomeSource,
	cfg *config.AnalysisConfig,
) *AggregatorService {
	ttl := DefaultCacheTTL
	if cfg.CacheTTLSeconds > 0 {
		ttl = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}

	return &AggregatorService{
		persistence:   persistence,
		conversations: conversations,
		eventSource:   eventSource,
		outcomeSource: outcomeSource,
		cache:         newHistoryCache(ttl, nil),
		logger:        log.NewModuleLogger("history", "aggregator"),
	}
}

// SubscribeLogEvents 订阅会话日志变更事件，提前失效缓存
// TTL 仍是正确性兜底；事件只是让失效更及时
func (s *AggregatorService) SubscribeLogEvents(bus events.EventBus) func() {
	return bus.SubscribeMultiple(
		[]events.EventType{
			events.ConversationLogCreated,
			events.ConversationLogModified,
			events.ConversationLogDeleted,
		},
		events.HandlerFunc(func(e events.Event) error {
			// 日志文件与项目没有固定对应关系，整体失效
			s.cache.invalidateAll()
			s.logger.Debug("会话日志变更，聚合缓存已失效", "type", e.Type())
			return nil
		}),
	)
}

// InvalidateCache 手动失效单个项目的缓存
func (s *AggregatorService) InvalidateCache(projectID string) {
	s.cache.invalidate(projectID)
}

// AggregateProject 聚合一个项目的完整执行历史
// includeConversations 控制是否加载会话转写（任务集合总是会推导）
func (s *AggregatorService) AggregateProject(projectID string, includeConversations bool) (*domain.ProjectHistory, error) {
	if cached := s.cache.get(projectID); cached != nil {
		s.logger.Debug("命中聚合缓存", "project_id", projectID)
		return cached, nil
	}

	startTime := time.Now()

	// 决策/产物/快照走完整翻页，不受 UI 页大小限制
	decisions, err := s.persistence.LoadAllDecisions(projectID)
	if err != nil {
		return nil, fmt.Errorf("aggregate project %s: %w", projectID, err)
	}
	artifacts, err := s.persistence.LoadAllArtifacts(projectID)
	if err != nil {
		return nil, fmt.Errorf("aggregate project %s: %w", projectID, err)
	}
	snapshot, err := s.persistence.LoadSnapshot(projectID)
	if err != nil {
		return nil, fmt.Errorf("aggregate project %s: %w", projectID, err)
	}

	var messages []domain.Message
	if includeConversations {
		messages, err = s.conversations.ReadProjectMessages(projectID)
		if err != nil {
			return nil, fmt.Errorf("aggregate project %s: %w", projectID, err)
		}
	}

	taskIDs, err := s.conversations.ProjectTaskIDs(projectID)
	if err != nil {
		return nil, fmt.Errorf("aggregate project %s: %w", projectID, err)
	}

	// 事件/结果读取是尽力而为：失败记日志并按无数据处理
	agentEvents, err := s.eventSource.ReadEventsForTasks(taskIDs)
	if err != nil {
		s.logger.Warn("读取代理事件失败，按无数据处理", "project_id", projectID, "error", err)
		agentEvents = nil
	}
	outcomes, err := s.outcomeSource.ReadOutcomesForTasks(taskIDs)
	if err != nil {
		s.logger.Warn("读取任务结果失败，按无数据处理", "project_id", projectID, "error", err)
		outcomes = nil
	}

	tasks := s.buildTaskHistories(taskIDs, outcomes, decisions, artifacts, messages, agentEvents)

	agentIDs := make(map[string]bool)
	for _, task := range tasks {
		if task.AgentID != "" {
			agentIDs[task.AgentID] = true
		}
	}
	for i := range decisions {
		if decisions[i].AgentID != "" {
			agentIDs[decisions[i].AgentID] = true
		}
	}

	profiles, err := s.outcomeSource.ReadProfilesForAgents(agentIDs)
	if err != nil {
		s.logger.Warn("读取代理档案失败，按无数据处理", "project_id", projectID, "error", err)
		profiles = nil
	}

	agents := buildAgentHistories(outcomes, decisions, artifacts, profiles)
	timeline := buildTimeline(decisions, artifacts, agentEvents)

	projectName := ""
	if snapshot != nil {
		projectName = snapshot.ProjectName
	}

	result := &domain.ProjectHistory{
		ProjectID:    projectID,
		ProjectName:  projectName,
		Snapshot:     snapshot,
		Tasks:        tasks,
		Agents:       agents,
		Timeline:     timeline,
		Decisions:    decisions,
		Artifacts:    artifacts,
		AggregatedAt: time.Now().UTC(),
	}

	s.cache.put(projectID, result)

	s.logger.Info("项目历史聚合完成",
		"project_id", projectID,
		"tasks", len(tasks),
		"decisions", len(decisions),
		"artifacts", len(artifacts),
		"duration", time.Since(startTime),
	)
	return result, nil
}

// buildTaskHistories 构建任务聚合
// 以结果记录为身份/计时基底，再叠加决策、产物、会话指令与事件时间戳；
// 决策/产物引用了会话中未出现的任务时，创建 unknown 状态的占位任务
func (s *AggregatorService) buildTaskHistories(
	taskIDs map[string]bool,
	outcomes []domain.TaskOutcome,
	decisions []domain.Decision,
	artifacts []domain.ArtifactMetadata,
	messages []domain.Message,
	agentEvents []domain.AgentEvent,
) map[string]*domain.TaskHistory {
	tasks := make(map[string]*domain.TaskHistory)

	ensure := func(taskID string) *domain.TaskHistory {
		if task, ok := tasks[taskID]; ok {
			return task
		}
		task := &domain.TaskHistory{
			TaskID: taskID,
			Status: domain.TaskStatusUnknown,
		}
		tasks[taskID] = task
		return task
	}

	for taskID := range taskIDs {
		ensure(taskID)
	}

	// 结果记录提供身份与计时基底
	for i := range outcomes {
		outcome := outcomes[i]
		task := ensure(outcome.TaskID)
		task.TaskName = outcome.TaskName
		task.Status = outcome.Status
		task.AgentID = outcome.AgentID
		task.EstimatedHours = outcome.EstimatedHours
		task.ActualHours = outcome.ActualHours
		task.StartedAt = normalizeTime(outcome.StartedAt)
		task.CompletedAt = normalizeTime(outcome.CompletedAt)
		task.Dependencies = outcome.Dependencies
		task.Blockers = outcome.Blockers
		task.Outcome = &outcome
	}

	for i := range decisions {
		task := ensure(decisions[i].TaskID)
		task.Decisions = append(task.Decisions, decisions[i])
	}

	for i := range artifacts {
		artifact := artifacts[i]
		task := ensure(artifact.TaskID)
		task.Artifacts = append(task.Artifacts, artifact)
		for _, consumerID := range artifact.ConsumedBy {
			consumer := ensure(consumerID)
			consumer.ArtifactsUsed = append(consumer.ArtifactsUsed, artifact)
		}
	}

	// 会话转写与指令：任务线程中第一条携带 instructions 元数据的
	// 消息被视为代理实际收到的指令
	for i := range messages {
		taskID := messages[i].TaskID()
		if taskID == "" {
			continue
		}
		task := ensure(taskID)
		task.Conversation = append(task.Conversation, messages[i])
		if task.Instructions == "" {
			if instructions := messages[i].Instructions(); instructions != "" {
				task.Instructions = instructions
			}
		}
	}

	// 事件提供分配/开始/完成时间戳；结果记录缺失时补齐
	for i := range agentEvents {
		event := agentEvents[i]
		task := ensure(event.TaskID)
		ts := event.Timestamp.UTC()

		switch event.EventType {
		case domain.EventTaskAssigned:
			if task.AssignedAt == nil {
				task.AssignedAt = &ts
			}
		case domain.EventTaskStarted:
			if task.StartedAt == nil {
				task.StartedAt = &ts
			}
		case domain.EventTaskCompleted:
			if task.CompletedAt == nil {
				task.CompletedAt = &ts
			}
		}
		if task.AgentID == "" {
			task.AgentID = event.AgentID
		}
	}

	return tasks
}

// buildAgentHistories 按代理折叠结果/决策/产物计数，并挂接长期档案
func buildAgentHistories(
	outcomes []domain.TaskOutcome,
	decisions []domain.Decision,
	artifacts []domain.ArtifactMetadata,
	profiles []domain.AgentProfile,
) map[string]*domain.AgentHistory {
	agents := make(map[string]*domain.AgentHistory)

	ensure := func(agentID string) *domain.AgentHistory {
		if agentID == "" {
			return nil
		}
		if agent, ok := agents[agentID]; ok {
			return agent
		}
		agent := &domain.AgentHistory{AgentID: agentID}
		agents[agentID] = agent
		return agent
	}

	for i := range profiles {
		if agent := ensure(profiles[i].AgentID); agent != nil {
			profile := profiles[i]
			agent.Profile = &profile
		}
	}

	for i := range outcomes {
		agent := ensure(outcomes[i].AgentID)
		if agent == nil {
			continue
		}
		agent.TotalHours += outcomes[i].ActualHours
		switch outcomes[i].Status {
		case domain.TaskStatusCompleted:
			agent.TasksCompleted++
		case domain.TaskStatusBlocked:
			agent.TasksBlocked++
		}
	}

	for i := range decisions {
		if agent := ensure(decisions[i].AgentID); agent != nil {
			agent.DecisionsMade++
		}
	}

	for i := range artifacts {
		if agent := ensure(artifacts[i].AgentID); agent != nil {
			agent.ArtifactsProduced++
		}
	}

	return agents
}

// buildTimeline 合并决策、产物与原始事件为全局时间线（按时间升序）
func buildTimeline(
	decisions []domain.Decision,
	artifacts []domain.ArtifactMetadata,
	agentEvents []domain.AgentEvent,
) []domain.TimelineEvent {
	timeline := make([]domain.TimelineEvent, 0, len(decisions)+len(artifacts)+len(agentEvents))

	for i := range decisions {
		timeline = append(timeline, domain.TimelineEvent{
			Timestamp:   decisions[i].Timestamp.UTC(),
			EventType:   "decision",
			TaskID:      decisions[i].TaskID,
			AgentID:     decisions[i].AgentID,
			Description: decisions[i].What,
			RefID:       decisions[i].ID,
		})
	}

	for i := range artifacts {
		timeline = append(timeline, domain.TimelineEvent{
			Timestamp:   artifacts[i].Timestamp.UTC(),
			EventType:   "artifact",
			TaskID:      artifacts[i].TaskID,
			AgentID:     artifacts[i].AgentID,
			Description: artifacts[i].Filename,
			RefID:       artifacts[i].ID,
		})
	}

	for i := range agentEvents {
		timeline = append(timeline, domain.TimelineEvent{
			Timestamp:   agentEvents[i].Timestamp.UTC(),
			EventType:   agentEvents[i].EventType,
			TaskID:      agentEvents[i].TaskID,
			AgentID:     agentEvents[i].AgentID,
			Description: agentEvents[i].EventType,
			RefID:       agentEvents[i].ID,
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})

	return timeline
}

// normalizeTime 时间指针统一转 UTC
func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
