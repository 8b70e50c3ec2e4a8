package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
)

// fakeAggregator 返回预置的项目历史
type fakeAggregator struct {
	history *domain.ProjectHistory
	err     error
}

func (f *fakeAggregator) AggregateProject(string, bool) (*domain.ProjectHistory, error) {
	return f.history, f.err
}

func newTestOrchestrator(provider analysis.Provider, history *domain.ProjectHistory) *Orchestrator {
	engine := newTestEngine(provider)
	return NewOrchestrator(
		&fakeAggregator{history: history},
		engine,
		NewRequirementAnalyzer(engine),
		NewDecisionImpactAnalyzer(engine),
		NewInstructionQualityAnalyzer(engine),
		NewFailureDiagnosisAnalyzer(engine),
		NewRedundancyAnalyzer(engine, &config.AnalysisConfig{QuickCompletionSeconds: 30}),
	)
}

func orchestratorFixture() *domain.ProjectHistory {
	decisionTime := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	history := &domain.ProjectHistory{
		ProjectID: "proj-1",
		Tasks: map[string]*domain.TaskHistory{
			"task-1": completedTask("task-1", 3600),
			"task-2": completedTask("task-2", 10),
			"task-3": {TaskID: "task-3", TaskName: "任务 task-3", AgentID: "agent-b", Status: domain.TaskStatusFailed, Blockers: []string{"依赖缺失"}},
		},
		Decisions: []domain.Decision{
			{ID: "dec-1", TaskID: "task-1", AgentID: "agent-a", Timestamp: decisionTime, What: "采用 NDJSON 会话日志", AffectedTasks: []string{"task-1", "task-2"}},
		},
		AggregatedAt: decisionTime,
	}
	return history
}

func TestOrchestrator_FullRun(t *testing.T) {
	provider := &fakeProvider{response: `{
		"score": 1,
		"impact_chains": [{"direct_impacts": ["task-2 改用新日志格式"], "depth": 1, "citation": "dec-1"}],
		"summary": "项目整体健康",
		"interpretation": "ok"
	}`}
	orchestrator := newTestOrchestrator(provider, orchestratorFixture())

	report, err := orchestrator.Run(context.Background(), "proj-1", analysis.DefaultScope(), nil, false)
	require.NoError(t, err)

	// 3 任务需求 + 1 决策 + 3 指令质量 + 1 失败诊断 + 1 冗余 + 1 摘要
	assert.Len(t, report.Requirements, 3)
	require.Len(t, report.DecisionImpacts, 1)
	assert.NotEmpty(t, report.DecisionImpacts[0].ImpactChains)
	assert.Len(t, report.InstructionQuality, 3)
	require.Len(t, report.FailureDiagnoses, 1)
	assert.Equal(t, "task-3", report.FailureDiagnoses[0].TaskID)
	require.NotNil(t, report.Redundancy)
	assert.Equal(t, "项目整体健康", report.Summary)
	assert.Equal(t, 10, provider.calls)

	assert.Equal(t, 3, report.Metadata.TasksAnalyzed)
	assert.Equal(t, 1, report.Metadata.DecisionsAnalyzed)
	assert.ElementsMatch(t, analysis.DefaultScope().Enabled(), report.Metadata.ScopesRun)
	assert.Empty(t, report.Metadata.AnalyzerErrors)
	assert.False(t, report.Metadata.CompletedAt.Before(report.Metadata.StartedAt))
}

func TestOrchestrator_SkipsAnalyzersWithoutData(t *testing.T) {
	history := orchestratorFixture()
	history.Decisions = nil
	for _, task := range history.Tasks {
		task.Status = domain.TaskStatusCompleted
	}

	provider := &fakeProvider{response: `{"score": 1, "summary": "ok"}`}
	orchestrator := newTestOrchestrator(provider, history)

	report, err := orchestrator.Run(context.Background(), "proj-1", analysis.DefaultScope(), nil, false)
	require.NoError(t, err)

	// 无决策、无失败任务：对应分析器整类跳过，不产生 Provider 调用
	assert.Empty(t, report.DecisionImpacts)
	assert.Empty(t, report.FailureDiagnoses)
	assert.NotContains(t, report.Metadata.ScopesRun, string(analysis.TypeDecisionImpact))
	assert.NotContains(t, report.Metadata.ScopesRun, string(analysis.TypeFailureDiagnosis))
	// 3 需求 + 3 指令质量 + 1 冗余 + 1 摘要
	assert.Equal(t, 8, provider.calls)
}

func TestOrchestrator_ScopeGating(t *testing.T) {
	provider := &fakeProvider{response: `{"score": 1, "summary": "ok"}`}
	orchestrator := newTestOrchestrator(provider, orchestratorFixture())

	scope := analysis.Scope{TaskRedundancy: true}
	report, err := orchestrator.Run(context.Background(), "proj-1", scope, nil, false)
	require.NoError(t, err)

	assert.Empty(t, report.Requirements)
	assert.Empty(t, report.DecisionImpacts)
	require.NotNil(t, report.Redundancy)
	assert.Equal(t, []string{string(analysis.TypeTaskRedundancy)}, report.Metadata.ScopesRun)
	// 1 冗余 + 1 摘要
	assert.Equal(t, 2, provider.calls)
}

func TestOrchestrator_AnalyzerFailureIsolated(t *testing.T) {
	// Provider 恒定失败：所有分析器都出错，但运行本身成功返回
	provider := &fakeProvider{err: assert.AnError}
	orchestrator := newTestOrchestrator(provider, orchestratorFixture())

	report, err := orchestrator.Run(context.Background(), "proj-1", analysis.DefaultScope(), nil, false)
	require.NoError(t, err)

	assert.Empty(t, report.Requirements)
	assert.Empty(t, report.FailureDiagnoses)
	assert.Nil(t, report.Redundancy)
	assert.Empty(t, report.Summary)
	// 3 需求 + 1 决策 + 3 指令质量 + 1 失败诊断 + 1 冗余
	assert.Len(t, report.Metadata.AnalyzerErrors, 9)
	// 所有分析器都失败时没有摘要输入，摘要步骤不调用 Provider
	assert.Equal(t, 9, provider.calls)
}

func TestOrchestrator_AggregationFailure(t *testing.T) {
	engine := newTestEngine(&fakeProvider{})
	orchestrator := NewOrchestrator(
		&fakeAggregator{err: assert.AnError},
		engine,
		NewRequirementAnalyzer(engine),
		NewDecisionImpactAnalyzer(engine),
		NewInstructionQualityAnalyzer(engine),
		NewFailureDiagnosisAnalyzer(engine),
		NewRedundancyAnalyzer(engine, &config.AnalysisConfig{}),
	)

	_, err := orchestrator.Run(context.Background(), "proj-1", analysis.DefaultScope(), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrate project proj-1")
}

func TestOrchestrator_ProgressEvents(t *testing.T) {
	provider := &fakeProvider{response: `{"score": 1, "summary": "ok"}`}
	orchestrator := newTestOrchestrator(provider, orchestratorFixture())

	var runEvents []analysis.ProgressEvent
	callback := func(e analysis.ProgressEvent) {
		if e.Operation == runOperation {
			runEvents = append(runEvents, e)
		}
	}

	_, err := orchestrator.Run(context.Background(), "proj-1", analysis.DefaultScope(), callback, false)
	require.NoError(t, err)

	// 起始 + 五个分析步骤 + 摘要 + 完成
	require.Len(t, runEvents, 8)
	assert.Equal(t, 0, runEvents[0].Current)
	assert.Equal(t, 6, runEvents[0].Total)
	last := runEvents[len(runEvents)-1]
	assert.Equal(t, last.Total, last.Current)
}

func TestOrchestrator_EmptyProject(t *testing.T) {
	provider := &fakeProvider{response: `{"summary": "ok"}`}
	orchestrator := newTestOrchestrator(provider, &domain.ProjectHistory{ProjectID: "proj-empty", Tasks: map[string]*domain.TaskHistory{}})

	report, err := orchestrator.Run(context.Background(), "proj-empty", analysis.DefaultScope(), nil, false)
	require.NoError(t, err)

	assert.Empty(t, report.Metadata.ScopesRun)
	assert.Empty(t, report.Summary)
	// 没有任何分析器运行，也就没有摘要输入，不调用 Provider
	assert.Equal(t, 0, provider.calls)
}
