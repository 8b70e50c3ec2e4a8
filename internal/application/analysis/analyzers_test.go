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

func completedTask(taskID string, durationSeconds float64) *domain.TaskHistory {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(durationSeconds * float64(time.Second)))
	return &domain.TaskHistory{
		TaskID:      taskID,
		TaskName:    "任务 " + taskID,
		AgentID:     "agent-a",
		Status:      domain.TaskStatusCompleted,
		StartedAt:   &start,
		CompletedAt: &end,
	}
}

func TestMapDivergences_RejectsInvalidEntries(t *testing.T) {
	parsed := map[string]interface{}{
		"divergences": []interface{}{
			map[string]interface{}{"requirement": "支持重试", "implementation": "未实现", "severity": "major"},
			// severity 不在既定集合内
			map[string]interface{}{"requirement": "支持限流", "severity": "catastrophic"},
			// requirement 为空
			map[string]interface{}{"severity": "minor"},
			"not an object",
		},
	}

	divergences := mapDivergences(parsed)
	require.Len(t, divergences, 1)
	assert.Equal(t, "支持重试", divergences[0].Requirement)
	assert.Equal(t, analysis.SeverityMajor, divergences[0].Severity)
}

func TestComputeTimeVariance(t *testing.T) {
	assert.InDelta(t, 2.0, computeTimeVariance(&domain.TaskHistory{EstimatedHours: 2, ActualHours: 4}), 0.001)
	// 无估算时默认 1.0
	assert.InDelta(t, 1.0, computeTimeVariance(&domain.TaskHistory{ActualHours: 4}), 0.001)
	assert.InDelta(t, 1.0, computeTimeVariance(&domain.TaskHistory{EstimatedHours: -1, ActualHours: 4}), 0.001)
}

func TestMapQualityScore_NestedObject(t *testing.T) {
	parsed := map[string]interface{}{
		"score": map[string]interface{}{
			"clarity":      0.9,
			"completeness": 0.7,
			"specificity":  0.6,
			"overall":      0.75,
		},
	}

	score := mapQualityScore(parsed)
	assert.InDelta(t, 0.9, score.Clarity, 0.001)
	assert.InDelta(t, 0.75, score.Overall, 0.001)

	// score 缺失时返回零值
	assert.Equal(t, analysis.QualityScore{}, mapQualityScore(map[string]interface{}{}))
}

func TestMapFailureCauses_RejectsUnknownCategory(t *testing.T) {
	parsed := map[string]interface{}{
		"causes": []interface{}{
			map[string]interface{}{"category": "technical", "root_cause": "依赖版本冲突"},
			map[string]interface{}{"category": "astrological", "root_cause": "水逆"},
			map[string]interface{}{"category": "process"},
		},
	}

	causes := mapFailureCauses(parsed)
	require.Len(t, causes, 1)
	assert.Equal(t, analysis.CauseTechnical, causes[0].Category)
}

func TestMapPreventions_NormalizesLevels(t *testing.T) {
	parsed := map[string]interface{}{
		"preventions": []interface{}{
			map[string]interface{}{"strategy": "锁定依赖版本", "effort": "low", "priority": "urgent"},
		},
	}

	preventions := mapPreventions(parsed)
	require.Len(t, preventions, 1)
	assert.Equal(t, analysis.LevelLow, preventions[0].Effort)
	// 未知档位归为 medium
	assert.Equal(t, analysis.LevelMedium, preventions[0].Priority)
}

func TestMapImpactChains_RequiresImpacts(t *testing.T) {
	parsed := map[string]interface{}{
		"impact_chains": []interface{}{
			map[string]interface{}{"direct_impacts": []interface{}{"task-2 重构"}, "depth": float64(2)},
			map[string]interface{}{"depth": float64(1)},
		},
	}

	chains := mapImpactChains(parsed)
	require.Len(t, chains, 1)
	assert.Equal(t, 2, chains[0].Depth)
}

func TestDetectQuickCompletions(t *testing.T) {
	analyzer := NewRedundancyAnalyzer(nil, &config.AnalysisConfig{QuickCompletionSeconds: 30})

	history := &domain.ProjectHistory{Tasks: map[string]*domain.TaskHistory{
		"task-1": completedTask("task-1", 10),
		"task-2": completedTask("task-2", 25),
		"task-3": completedTask("task-3", 7200),
		// 失败任务与无时长任务不计入分母
		"task-4": {TaskID: "task-4", Status: domain.TaskStatusFailed},
		"task-5": {TaskID: "task-5", Status: domain.TaskStatusCompleted},
	}}

	quick, rate := analyzer.detectQuickCompletions(history)
	require.Len(t, quick, 2)
	assert.Equal(t, "task-1", quick[0].TaskID)
	assert.Equal(t, "task-2", quick[1].TaskID)
	assert.InDelta(t, 30.0, quick[0].ThresholdSeconds, 0.001)
	assert.InDelta(t, 2.0/3.0, rate, 0.001)
}

func TestRecommendTier(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		rate     float64
		expected string
	}{
		{"冗余严重", 0.5, 0.0, analysis.TierPrototype},
		{"快速完成占比高", 0.0, 0.41, analysis.TierPrototype},
		{"中度冗余", 0.3, 0.0, analysis.TierStandard},
		{"中度快速完成", 0.1, 0.25, analysis.TierStandard},
		{"冗余轻微", 0.1, 0.1, analysis.TierEnterprise},
		{"边界值不升档", 0.4, 0.2, analysis.TierStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, recommendTier(tt.score, tt.rate))
		})
	}
}

func TestRequirementAnalyzer_EndToEnd(t *testing.T) {
	provider := &fakeProvider{response: `{
		"fidelity_score": 0.6,
		"divergences": [{"requirement": "带重试的上传", "implementation": "无重试", "severity": "major", "citation": "task-1", "impact": "弱网下丢数据"}],
		"interpretation": "实现覆盖了主流程但缺少重试",
		"recommendations": ["补充重试逻辑"],
		"confidence": 0.8
	}`}
	analyzer := NewRequirementAnalyzer(newTestEngine(provider))

	task := completedTask("task-1", 3600)
	task.Instructions = "实现带重试的文件上传"

	result, err := analyzer.Analyze(context.Background(), "proj-1", task, nil, false)
	require.NoError(t, err)

	assert.Equal(t, "task-1", result.TaskID)
	assert.InDelta(t, 0.6, result.FidelityScore, 0.001)
	require.Len(t, result.Divergences, 1)
	assert.Equal(t, analysis.SeverityMajor, result.Divergences[0].Severity)
	assert.Equal(t, []string{"补充重试逻辑"}, result.Recommendations)
	// 分析所依据的原始上下文随结果返回
	assert.Equal(t, "实现带重试的文件上传", result.Input["instructions"])
}

func TestFailureDiagnosisAnalyzer_EndToEnd(t *testing.T) {
	provider := &fakeProvider{response: `{
		"causes": [{"category": "communication", "root_cause": "指令未说明目标环境", "evidence": ["task-2 对话"], "citation": "task-2"}],
		"preventions": [{"strategy": "指令中写明环境约束", "rationale": "避免环境假设", "effort": "low", "priority": "high"}],
		"interpretation": "失败源于沟通缺口",
		"recommendations": ["补充环境说明模板"]
	}`}
	analyzer := NewFailureDiagnosisAnalyzer(newTestEngine(provider))

	task := &domain.TaskHistory{
		TaskID:   "task-2",
		Status:   domain.TaskStatusFailed,
		AgentID:  "agent-b",
		Blockers: []string{"缺少环境说明"},
	}

	result, err := analyzer.Analyze(context.Background(), "proj-1", task, nil, false)
	require.NoError(t, err)

	require.Len(t, result.Causes, 1)
	assert.Equal(t, analysis.CauseCommunication, result.Causes[0].Category)
	require.Len(t, result.Preventions, 1)
	assert.Equal(t, analysis.LevelHigh, result.Preventions[0].Priority)
	assert.Equal(t, "缺少环境说明", result.Input["blockers"])
}

func TestRedundancyAnalyzer_EndToEnd(t *testing.T) {
	provider := &fakeProvider{response: `{
		"redundancy_score": 0.5,
		"redundant_pairs": [
			{"task_a": "task-1", "task_b": "task-2", "overlap_score": 0.9, "evidence": "相同的解析逻辑", "time_wasted_hours": 2, "citation": "task-1/task-2"},
			{"task_a": "task-3", "overlap_score": 0.5}
		],
		"interpretation": "两个任务重复实现了解析器"
	}`}
	analyzer := NewRedundancyAnalyzer(newTestEngine(provider), &config.AnalysisConfig{QuickCompletionSeconds: 30})

	history := &domain.ProjectHistory{Tasks: map[string]*domain.TaskHistory{
		"task-1": completedTask("task-1", 10),
		"task-2": completedTask("task-2", 3600),
	}}

	result, err := analyzer.Analyze(context.Background(), "proj-1", history, nil, false)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.RedundancyScore, 0.001)
	// 缺少任务标识的冗余对整条拒绝
	require.Len(t, result.RedundantPairs, 1)
	assert.Equal(t, "task-1", result.RedundantPairs[0].TaskA)
	require.Len(t, result.QuickCompletions, 1)
	assert.InDelta(t, 0.5, result.QuickCompletionRate, 0.001)
	// score>0.4 推荐 prototype 档
	assert.Equal(t, analysis.TierPrototype, result.RecommendedTier)
}

func TestDecisionImpactContext_SubsequentActivity(t *testing.T) {
	decisionTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	before := decisionTime.Add(-time.Hour)
	after := decisionTime.Add(time.Hour)

	history := &domain.ProjectHistory{
		Tasks: map[string]*domain.TaskHistory{
			"task-2": {TaskID: "task-2", TaskName: "迁移存储", Status: domain.TaskStatusBlocked, Blockers: []string{"等待新 schema"}},
		},
		Timeline: []domain.TimelineEvent{
			{Timestamp: before, EventType: "decision", TaskID: "task-1", Description: "早于决策"},
			{Timestamp: after, EventType: "task_completed", TaskID: "task-2", AgentID: "agent-b", Description: "晚于决策"},
		},
	}
	decision := &domain.Decision{
		ID:            "dec-1",
		AgentID:       "agent-a",
		Timestamp:     decisionTime,
		What:          "切换到列式存储",
		AffectedTasks: []string{"task-2"},
	}

	context := decisionImpactContext{decision: decision, history: history}.toTemplateContext()

	assert.Contains(t, context["subsequent_activity"], "晚于决策")
	assert.NotContains(t, context["subsequent_activity"], "早于决策")
	assert.Contains(t, context["subsequent_activity"], "affected task task-2")
	assert.Equal(t, "dec-1", context["decision_id"])
}
