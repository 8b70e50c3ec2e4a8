package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hindsight/backend/internal/domain/history"
)

// newQueryFixture 构建带依赖链与会话的查询夹具
func newQueryFixture() *QueryService {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tasks := map[string]*domain.TaskHistory{
		"task-1": {
			TaskID: "task-1", TaskName: "数据模型", Status: domain.TaskStatusCompleted,
			AgentID: "agent-a", ActualHours: 2,
			CompletedAt: timePtr(base.Add(2 * time.Hour)),
			Conversation: []domain.Message{
				{Timestamp: base, AgentID: "agent-a", Text: "数据模型设计完成"},
			},
		},
		"task-2": {
			TaskID: "task-2", TaskName: "API 层", Status: domain.TaskStatusCompleted,
			AgentID: "agent-a", ActualHours: 4,
			CompletedAt:  timePtr(base.Add(6 * time.Hour)),
			Dependencies: []string{"task-1"},
		},
		"task-3": {
			TaskID: "task-3", TaskName: "部署", Status: domain.TaskStatusFailed,
			AgentID: "agent-b",
			// 未计时的已完成任务不应拉低均值
			Dependencies: []string{"task-2", "task-9"},
			Conversation: []domain.Message{
				{Timestamp: base.Add(7 * time.Hour), AgentID: "agent-b", Text: "部署因权限失败"},
			},
		},
		"task-4": {
			TaskID: "task-4", TaskName: "文档", Status: domain.TaskStatusCompleted,
			AgentID: "agent-a", ActualHours: 0,
			CompletedAt: timePtr(base.Add(8 * time.Hour)),
		},
	}

	history := &domain.ProjectHistory{
		ProjectID:   "proj-1",
		ProjectName: "电商后端",
		Tasks:       tasks,
		Agents: map[string]*domain.AgentHistory{
			"agent-a": {AgentID: "agent-a", TasksCompleted: 3, TotalHours: 6, DecisionsMade: 2},
			"agent-b": {AgentID: "agent-b", TasksBlocked: 1},
		},
		Decisions: []domain.Decision{
			{ID: "dec-1", TaskID: "task-1", AgentID: "agent-a", AffectedTasks: []string{"task-2", "task-3"}},
			{ID: "dec-2", TaskID: "task-2", AgentID: "agent-a"},
		},
		Artifacts: []domain.ArtifactMetadata{
			{ID: "art-1", TaskID: "task-1", AgentID: "agent-a", Filename: "models.go", ConsumedBy: []string{"task-2"}},
		},
		Timeline: []domain.TimelineEvent{
			{Timestamp: base, EventType: "decision"},
			{Timestamp: base.Add(8 * time.Hour), EventType: "artifact"},
		},
	}

	return NewQueryService(history)
}

func TestQueryService_TaskFilters(t *testing.T) {
	q := newQueryFixture()

	completed := q.TasksByStatus(domain.TaskStatusCompleted)
	assert.Len(t, completed, 3)

	byAgent := q.TasksByAgent("agent-b")
	require.Len(t, byAgent, 1)
	assert.Equal(t, "task-3", byAgent[0].TaskID)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	inRange := q.TasksInTimeRange(base.Add(time.Hour), base.Add(7*time.Hour))
	require.Len(t, inRange, 2)
	assert.Equal(t, "task-1", inRange[0].TaskID)
	assert.Equal(t, "task-2", inRange[1].TaskID)
}

func TestQueryService_DecisionFilters(t *testing.T) {
	q := newQueryFixture()

	assert.Len(t, q.DecisionsByTask("task-1"), 1)
	assert.Len(t, q.DecisionsByAgent("agent-a"), 2)
	assert.Empty(t, q.DecisionsByAgent("agent-z"))

	affecting := q.DecisionsAffectingTask("task-3")
	require.Len(t, affecting, 1)
	assert.Equal(t, "dec-1", affecting[0].ID)
}

func TestQueryService_ArtifactFilters(t *testing.T) {
	q := newQueryFixture()

	produced := q.ArtifactsByTask("task-1")
	require.Len(t, produced, 1)
	assert.Equal(t, "models.go", produced[0].Filename)

	consumed := q.ArtifactsConsumedBy("task-2")
	require.Len(t, consumed, 1)
	assert.Equal(t, "art-1", consumed[0].ID)
	assert.Empty(t, q.ArtifactsConsumedBy("task-1"))
}

func TestQueryService_SearchConversations(t *testing.T) {
	q := newQueryFixture()

	// 关键词大小写不敏感
	hits := q.SearchConversations("部署", "", "")
	require.Len(t, hits, 1)
	assert.Equal(t, "agent-b", hits[0].AgentID)

	byAgent := q.SearchConversations("", "agent-a", "")
	assert.Len(t, byAgent, 1)

	byTask := q.SearchConversations("", "", "task-3")
	assert.Len(t, byTask, 1)

	assert.Empty(t, q.SearchConversations("不存在的词", "", ""))
}

func TestQueryService_TaskDependencyChain(t *testing.T) {
	q := newQueryFixture()

	// task-3 → task-2, task-9(缺失) → task-1；不含起点，缺失任务跳过
	chain := q.TaskDependencyChain("task-3")
	require.Len(t, chain, 2)

	ids := map[string]bool{}
	for _, task := range chain {
		ids[task.TaskID] = true
	}
	assert.True(t, ids["task-2"])
	assert.True(t, ids["task-1"])
	assert.False(t, ids["task-3"])
}

func TestQueryService_TaskDependencyChainCycle(t *testing.T) {
	tasks := map[string]*domain.TaskHistory{
		"a": {TaskID: "a", Dependencies: []string{"b"}},
		"b": {TaskID: "b", Dependencies: []string{"a"}},
	}
	q := NewQueryService(&domain.ProjectHistory{Tasks: tasks})

	// 依赖环不会导致死循环，每个节点至多访问一次
	chain := q.TaskDependencyChain("a")
	require.Len(t, chain, 1)
	assert.Equal(t, "b", chain[0].TaskID)
}

func TestQueryService_AgentPerformanceMetrics(t *testing.T) {
	q := newQueryFixture()

	metrics := q.AgentPerformanceMetrics("agent-a")
	assert.Equal(t, 3, metrics.TasksCompleted)
	assert.Equal(t, 2, metrics.DecisionsMade)

	// task-4 的 actualHours 为 0，不计入均值：(2+4)/2 = 3
	assert.InDelta(t, 3.0, metrics.AverageTaskHours, 1e-9)

	unknown := q.AgentPerformanceMetrics("agent-z")
	assert.Zero(t, unknown.TasksCompleted)
	assert.Zero(t, unknown.AverageTaskHours)
}

func TestQueryService_ProjectSummary(t *testing.T) {
	q := newQueryFixture()

	summary := q.ProjectSummary()
	assert.Equal(t, "proj-1", summary.ProjectID)
	assert.Equal(t, 3, summary.TaskCounts[domain.TaskStatusCompleted])
	assert.Equal(t, 1, summary.TaskCounts[domain.TaskStatusFailed])
	assert.Equal(t, 2, summary.AgentCount)
	assert.InDelta(t, 8.0, summary.DurationHours, 1e-9)
}

func TestQueryService_ProjectSummaryEmptyTimeline(t *testing.T) {
	q := NewQueryService(&domain.ProjectHistory{
		ProjectID: "proj-empty",
		Tasks:     map[string]*domain.TaskHistory{},
		Agents:    map[string]*domain.AgentHistory{},
	})

	summary := q.ProjectSummary()
	assert.Zero(t, summary.DurationHours)
}
