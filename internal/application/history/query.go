package history

import (
	"sort"
	"strings"
	"time"

	domain "github.com/hindsight/backend/internal/domain/history"
)

// QueryService 聚合结果之上的无状态查询门面
// 所有方法都是对内存集合的纯过滤/遍历
type QueryService struct {
	history *domain.ProjectHistory
}

// NewQueryService 基于一次聚合结果创建查询门面
func NewQueryService(history *domain.ProjectHistory) *QueryService {
	return &QueryService{history: history}
}

// TasksByStatus 按状态过滤任务
func (q *QueryService) TasksByStatus(status string) []*domain.TaskHistory {
	var result []*domain.TaskHistory
	for _, task := range q.history.Tasks {
		if task.Status == status {
			result = append(result, task)
		}
	}
	sortTasks(result)
	return result
}

// TasksByAgent 按代理过滤任务
func (q *QueryService) TasksByAgent(agentID string) []*domain.TaskHistory {
	var result []*domain.TaskHistory
	for _, task := range q.history.Tasks {
		if task.AgentID == agentID {
			result = append(result, task)
		}
	}
	sortTasks(result)
	return result
}

// TasksInTimeRange 按完成时间范围过滤任务（闭区间）
func (q *QueryService) TasksInTimeRange(from, to time.Time) []*domain.TaskHistory {
	var result []*domain.TaskHistory
	for _, task := range q.history.Tasks {
		if task.CompletedAt == nil {
			continue
		}
		completed := *task.CompletedAt
		if !completed.Before(from) && !completed.After(to) {
			result = append(result, task)
		}
	}
	sortTasks(result)
	return result
}

// DecisionsByTask 某任务的全部决策
func (q *QueryService) DecisionsByTask(taskID string) []domain.Decision {
	var result []domain.Decision
	for i := range q.history.Decisions {
		if q.history.Decisions[i].TaskID == taskID {
			result = append(result, q.history.Decisions[i])
		}
	}
	return result
}

// DecisionsByAgent 某代理作出的全部决策
func (q *QueryService) DecisionsByAgent(agentID string) []domain.Decision {
	var result []domain.Decision
	for i := range q.history.Decisions {
		if q.history.Decisions[i].AgentID == agentID {
			result = append(result, q.history.Decisions[i])
		}
	}
	return result
}

// DecisionsAffectingTask 影响到某任务的决策（按 affected_tasks 匹配）
func (q *QueryService) DecisionsAffectingTask(taskID string) []domain.Decision {
	var result []domain.Decision
	for i := range q.history.Decisions {
		for _, affected := range q.history.Decisions[i].AffectedTasks {
			if affected == taskID {
				result = append(result, q.history.Decisions[i])
				break
			}
		}
	}
	return result
}

// ArtifactsByTask 某任务产出的全部产物
func (q *QueryService) ArtifactsByTask(taskID string) []domain.ArtifactMetadata {
	var result []domain.ArtifactMetadata
	for i := range q.history.Artifacts {
		if q.history.Artifacts[i].TaskID == taskID {
			result = append(result, q.history.Artifacts[i])
		}
	}
	return result
}

// ArtifactsConsumedBy 某任务消费的全部产物
func (q *QueryService) ArtifactsConsumedBy(taskID string) []domain.ArtifactMetadata {
	var result []domain.ArtifactMetadata
	for i := range q.history.Artifacts {
		for _, consumer := range q.history.Artifacts[i].ConsumedBy {
			if consumer == taskID {
				result = append(result, q.history.Artifacts[i])
				break
			}
		}
	}
	return result
}

// SearchConversations 在拍平的会话转写中按关键词/代理/任务检索
// keyword 为空表示不按文本过滤；agentID/taskID 为空表示不限定
func (q *QueryService) SearchConversations(keyword, agentID, taskID string) []domain.Message {
	keyword = strings.ToLower(keyword)

	var result []domain.Message
	for _, task := range q.history.Tasks {
		if taskID != "" && task.TaskID != taskID {
			continue
		}
		for i := range task.Conversation {
			message := task.Conversation[i]
			if agentID != "" && message.AgentID != agentID {
				continue
			}
			if keyword != "" && !strings.Contains(strings.ToLower(message.Text), keyword) {
				continue
			}
			result = append(result, message)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// TaskDependencyChain 任务的传递依赖链（广度优先，不含起点）
// 每个任务 ID 至多访问一次，依赖环不会导致死循环
func (q *QueryService) TaskDependencyChain(taskID string) []*domain.TaskHistory {
	visited := map[string]bool{taskID: true}
	queue := []string{taskID}

	var chain []*domain.TaskHistory
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		task, ok := q.history.Tasks[current]
		if !ok {
			continue
		}

		for _, dep := range task.Dependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
			if depTask, ok := q.history.Tasks[dep]; ok {
				chain = append(chain, depTask)
			}
		}
	}

	return chain
}

// AgentPerformanceMetrics 单个代理的绩效指标
type AgentPerformanceMetrics struct {
	AgentID           string  `json:"agent_id"`
	TasksCompleted    int     `json:"tasks_completed"`
	TasksBlocked      int     `json:"tasks_blocked"`
	TotalHours        float64 `json:"total_hours"`
	AverageTaskHours  float64 `json:"average_task_hours"`
	DecisionsMade     int     `json:"decisions_made"`
	ArtifactsProduced int     `json:"artifacts_produced"`
}

// AgentPerformanceMetrics 计算代理绩效
// 平均耗时只统计 actualHours > 0 的已完成任务，避免未计时任务拉低均值
func (q *QueryService) AgentPerformanceMetrics(agentID string) AgentPerformanceMetrics {
	metrics := AgentPerformanceMetrics{AgentID: agentID}

	if agent, ok := q.history.Agents[agentID]; ok {
		metrics.TasksCompleted = agent.TasksCompleted
		metrics.TasksBlocked = agent.TasksBlocked
		metrics.TotalHours = agent.TotalHours
		metrics.DecisionsMade = agent.DecisionsMade
		metrics.ArtifactsProduced = agent.ArtifactsProduced
	}

	timedHours := 0.0
	timedCount := 0
	for _, task := range q.history.Tasks {
		if task.AgentID != agentID || task.Status != domain.TaskStatusCompleted {
			continue
		}
		if task.ActualHours > 0 {
			timedHours += task.ActualHours
			timedCount++
		}
	}
	if timedCount > 0 {
		metrics.AverageTaskHours = timedHours / float64(timedCount)
	}

	return metrics
}

// ProjectSummary 项目级汇总
type ProjectSummary struct {
	ProjectID     string         `json:"project_id"`
	ProjectName   string         `json:"project_name"`
	TaskCounts    map[string]int `json:"task_counts"`
	AgentCount    int            `json:"agent_count"`
	DecisionCount int            `json:"decision_count"`
	ArtifactCount int            `json:"artifact_count"`
	DurationHours float64        `json:"duration_hours"`
}

// ProjectSummary 计算项目汇总
// 时长取时间线最早与最晚事件的跨度，无事件时为零
func (q *QueryService) ProjectSummary() ProjectSummary {
	summary := ProjectSummary{
		ProjectID:     q.history.ProjectID,
		ProjectName:   q.history.ProjectName,
		TaskCounts:    make(map[string]int),
		AgentCount:    len(q.history.Agents),
		DecisionCount: len(q.history.Decisions),
		ArtifactCount: len(q.history.Artifacts),
	}

	for _, task := range q.history.Tasks {
		summary.TaskCounts[task.Status]++
	}

	if len(q.history.Timeline) > 0 {
		first := q.history.Timeline[0].Timestamp
		last := q.history.Timeline[len(q.history.Timeline)-1].Timestamp
		summary.DurationHours = last.Sub(first).Hours()
	}

	return summary
}

// sortTasks 结果集按任务 ID 排序，保证遍历 map 后输出稳定
func sortTasks(tasks []*domain.TaskHistory) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].TaskID < tasks[j].TaskID
	})
}
