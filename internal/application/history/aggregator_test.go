package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
)

// fakeEventSource 测试用事件源
type fakeEventSource struct {
	events []domain.AgentEvent
	err    error
	calls  int
}

func (f *fakeEventSource) ReadEventsForTasks(taskIDs map[string]bool) ([]domain.AgentEvent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var result []domain.AgentEvent
	for i := range f.events {
		if taskIDs[f.events[i].TaskID] {
			result = append(result, f.events[i])
		}
	}
	return result, nil
}

// fakeOutcomeSource 测试用结果源
type fakeOutcomeSource struct {
	outcomes []domain.TaskOutcome
	profiles []domain.AgentProfile
	err      error
}

func (f *fakeOutcomeSource) ReadOutcomesForTasks(taskIDs map[string]bool) ([]domain.TaskOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	var result []domain.TaskOutcome
	for i := range f.outcomes {
		if taskIDs[f.outcomes[i].TaskID] {
			result = append(result, f.outcomes[i])
		}
	}
	return result, nil
}

func (f *fakeOutcomeSource) ReadProfilesForAgents(agentIDs map[string]bool) ([]domain.AgentProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	var result []domain.AgentProfile
	for i := range f.profiles {
		if agentIDs[f.profiles[i].AgentID] {
			result = append(result, f.profiles[i])
		}
	}
	return result, nil
}

func baseTime() time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

// newTestAggregator 组装一套带两任务一代理的测试夹具
func newTestAggregator(t *testing.T) (*AggregatorService, *fakeConversationSource, *fakeEventSource) {
	t.Helper()

	conversations := &fakeConversationSource{
		messages: map[string][]domain.Message{
			"proj-1": {
				{
					Timestamp: baseTime(),
					Direction: domain.DirectionFromPM,
					AgentID:   "agent-a",
					Text:      "请实现登录接口",
					Metadata: map[string]interface{}{
						"project_id": "proj-1", "task_id": "task-1",
						"instructions": "实现 JWT 登录接口，含刷新逻辑",
					},
				},
				{
					Timestamp: baseTime().Add(2 * time.Hour),
					Direction: domain.DirectionToPM,
					AgentID:   "agent-a",
					Text:      "登录接口已完成",
					Metadata:  map[string]interface{}{"project_id": "proj-1", "task_id": "task-1"},
				},
				{
					Timestamp: baseTime().Add(3 * time.Hour),
					Direction: domain.DirectionToPM,
					AgentID:   "agent-b",
					Text:      "部署脚本因权限失败",
					Metadata:  map[string]interface{}{"project_id": "proj-1", "task_id": "task-2"},
				},
			},
		},
		taskIDs: map[string]map[string]bool{
			"proj-1": {"task-1": true, "task-2": true},
		},
	}

	eventSource := &fakeEventSource{
		events: []domain.AgentEvent{
			{ID: "ev-1", EventType: domain.EventTaskAssigned, TaskID: "task-1", AgentID: "agent-a", Timestamp: baseTime().Add(-time.Hour)},
			{ID: "ev-2", EventType: domain.EventTaskStarted, TaskID: "task-1", AgentID: "agent-a", Timestamp: baseTime()},
		},
	}

	outcomeSource := &fakeOutcomeSource{
		outcomes: []domain.TaskOutcome{
			{
				TaskID: "task-1", TaskName: "实现登录接口", AgentID: "agent-a",
				Status: domain.TaskStatusCompleted, EstimatedHours: 3, ActualHours: 2,
				StartedAt: timePtr(baseTime()), CompletedAt: timePtr(baseTime().Add(2 * time.Hour)),
			},
			{
				TaskID: "task-2", TaskName: "编写部署脚本", AgentID: "agent-b",
				Status: domain.TaskStatusFailed, ActualHours: 1,
				Dependencies: []string{"task-1"}, Blockers: []string{"CI 权限不足"},
			},
		},
		profiles: []domain.AgentProfile{
			{AgentID: "agent-a", TasksCompleted: 12, SuccessRate: 0.92},
		},
	}

	svc := NewAggregatorService(
		newTestPersistence(t, conversations),
		conversations,
		eventSource,
		outcomeSource,
		&config.AnalysisConfig{CacheTTLSeconds: 60, PageSize: 10},
	)
	return svc, conversations, eventSource
}

func TestAggregatorService_AggregateProject(t *testing.T) {
	svc, _, _ := newTestAggregator(t)

	require.NoError(t, svc.persistence.AppendDecision("proj-1", "电商后端", &domain.Decision{
		ID: "dec-1", TaskID: "task-1", AgentID: "agent-a",
		Timestamp: baseTime().Add(time.Hour), What: "采用 JWT",
	}))
	require.NoError(t, svc.persistence.AppendArtifact("proj-1", "电商后端", &domain.ArtifactMetadata{
		ID: "art-1", TaskID: "task-1", AgentID: "agent-a",
		Timestamp: baseTime().Add(90 * time.Minute), Filename: "auth.go",
		ConsumedBy: []string{"task-2"},
	}))

	result, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 2)

	task1 := result.Tasks["task-1"]
	require.NotNil(t, task1)
	assert.Equal(t, domain.TaskStatusCompleted, task1.Status)
	assert.Equal(t, "agent-a", task1.AgentID)
	assert.Equal(t, "实现 JWT 登录接口，含刷新逻辑", task1.Instructions)
	assert.Len(t, task1.Conversation, 2)
	assert.Len(t, task1.Decisions, 1)
	assert.Len(t, task1.Artifacts, 1)
	require.NotNil(t, task1.AssignedAt, "assignment timestamp should come from events")

	// 产物消费方得到 ArtifactsUsed
	task2 := result.Tasks["task-2"]
	require.NotNil(t, task2)
	assert.Len(t, task2.ArtifactsUsed, 1)
	assert.Equal(t, []string{"CI 权限不足"}, task2.Blockers)

	// 代理聚合与长期档案
	agentA := result.Agents["agent-a"]
	require.NotNil(t, agentA)
	assert.Equal(t, 1, agentA.TasksCompleted)
	assert.Equal(t, 1, agentA.DecisionsMade)
	assert.Equal(t, 1, agentA.ArtifactsProduced)
	require.NotNil(t, agentA.Profile)
	assert.Equal(t, 12, agentA.Profile.TasksCompleted)

	// 时间线按时间升序且覆盖三类来源
	require.Len(t, result.Timeline, 4)
	for i := 1; i < len(result.Timeline); i++ {
		assert.False(t, result.Timeline[i].Timestamp.Before(result.Timeline[i-1].Timestamp))
	}
}

func TestAggregatorService_PlaceholderTaskForUnknownID(t *testing.T) {
	svc, conversations, _ := newTestAggregator(t)

	// 决策引用的任务在会话中出现过、但没有结果记录
	conversations.taskIDs["proj-1"]["task-ghost"] = true
	require.NoError(t, svc.persistence.AppendDecision("proj-1", "", &domain.Decision{
		ID: "dec-ghost", TaskID: "task-ghost", Timestamp: baseTime(),
	}))

	result, err := svc.AggregateProject("proj-1", false)
	require.NoError(t, err)

	ghost := result.Tasks["task-ghost"]
	require.NotNil(t, ghost, "unknown task id should create a placeholder, not be dropped")
	assert.Equal(t, domain.TaskStatusUnknown, ghost.Status)
	assert.Len(t, ghost.Decisions, 1)
}

func TestAggregatorService_CacheHit(t *testing.T) {
	svc, _, eventSource := newTestAggregator(t)

	first, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)
	callsAfterFirst := eventSource.calls

	// 第二次返回缓存对象，不重新读取数据源
	second, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, callsAfterFirst, eventSource.calls)

	// 失效后重新聚合
	svc.InvalidateCache("proj-1")
	third, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Greater(t, eventSource.calls, callsAfterFirst)
}

func TestAggregatorService_BestEffortEventRead(t *testing.T) {
	svc, _, eventSource := newTestAggregator(t)
	eventSource.err = fmt.Errorf("event backend unavailable")

	// 事件读取失败按无数据处理，聚合仍成功
	result, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)
	require.NotNil(t, result.Tasks["task-1"])
	assert.Nil(t, result.Tasks["task-1"].AssignedAt)
}

func TestAggregatorService_IdempotentAggregation(t *testing.T) {
	svc, _, _ := newTestAggregator(t)

	first, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)

	svc.InvalidateCache("proj-1")
	second, err := svc.AggregateProject("proj-1", true)
	require.NoError(t, err)

	// 相同输入两次聚合得到一致的结构
	assert.Equal(t, len(first.Tasks), len(second.Tasks))
	assert.Equal(t, len(first.Timeline), len(second.Timeline))
	assert.Equal(t, first.Tasks["task-1"].Status, second.Tasks["task-1"].Status)
}
