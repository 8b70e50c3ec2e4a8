package analysis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
)

// DefaultQuickCompletionSeconds 疑似冗余的快速完成阈值
const DefaultQuickCompletionSeconds = 30.0

// RedundancyAnalyzer 任务冗余分析器（项目级，TaskID 为空）
type RedundancyAnalyzer struct {
	engine           *Engine
	thresholdSeconds float64
}

// NewRedundancyAnalyzer 创建任务冗余分析器
func NewRedundancyAnalyzer(engine *Engine, cfg *config.AnalysisConfig) *RedundancyAnalyzer {
	threshold := DefaultQuickCompletionSeconds
	if cfg != nil && cfg.QuickCompletionSeconds > 0 {
		threshold = float64(cfg.QuickCompletionSeconds)
	}
	return &RedundancyAnalyzer{engine: engine, thresholdSeconds: threshold}
}

// redundancyContext 冗余分析的类型化上下文
type redundancyContext struct {
	history          *domain.ProjectHistory
	thresholdSeconds float64
	quickCompletions []analysis.QuickCompletion
	rate             float64
}

// toTemplateContext 展开为模板上下文
func (c redundancyContext) toTemplateContext() map[string]string {
	var summaries []string
	var conversations []string
	for _, taskID := range sortedTaskIDs(c.history) {
		task := c.history.Tasks[taskID]
		summaries = append(summaries, fmt.Sprintf("- %s (%s, agent %s, status %s, %.1fh): %s",
			task.TaskID, orPlaceholder(task.TaskName), orPlaceholder(task.AgentID),
			task.Status, task.ActualHours, orPlaceholder(task.Instructions)))
		if text := formatMessages(task.Conversation); text != noDataPlaceholder {
			conversations = append(conversations, fmt.Sprintf("[task %s]\n%s", task.TaskID, text))
		}
	}

	var quick []string
	for _, qc := range c.quickCompletions {
		quick = append(quick, fmt.Sprintf("- %s completed in %.0fs", qc.TaskID, qc.DurationSeconds))
	}

	return map[string]string{
		"task_summaries":        orPlaceholder(strings.Join(summaries, "\n")),
		"threshold_seconds":     strconv.FormatFloat(c.thresholdSeconds, 'f', 0, 64),
		"quick_completions":     orPlaceholder(strings.Join(quick, "\n")),
		"quick_completion_rate": strconv.FormatFloat(c.rate, 'f', 2, 64),
		"conversations":         orPlaceholder(strings.Join(conversations, "\n\n")),
	}
}

// Analyze 对整个项目的任务集做冗余检测
func (a *RedundancyAnalyzer) Analyze(ctx context.Context, projectID string, history *domain.ProjectHistory, callback analysis.ProgressCallback, useCache bool) (*analysis.RedundancyAnalysis, error) {
	quickCompletions, rate := a.detectQuickCompletions(history)
	contextData := redundancyContext{
		history:          history,
		thresholdSeconds: a.thresholdSeconds,
		quickCompletions: quickCompletions,
		rate:             rate,
	}.toTemplateContext()

	response, err := a.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeTaskRedundancy,
		ProjectID:      projectID,
		ContextData:    contextData,
		PromptTemplate: redundancyTemplate,
	}, callback, useCache)
	if err != nil {
		return nil, fmt.Errorf("redundancy analysis for project %s: %w", projectID, err)
	}

	score := floatField(response.Parsed, "redundancy_score", 0)
	result := &analysis.RedundancyAnalysis{
		RedundancyScore:     score,
		RedundantPairs:      mapRedundantPairs(response.Parsed),
		QuickCompletions:    quickCompletions,
		QuickCompletionRate: rate,
		RecommendedTier:     recommendTier(score, rate),
		Interpretation:      stringField(response.Parsed, "interpretation"),
		Recommendations:     stringSliceField(response.Parsed, "recommendations"),
		Input:               contextData,
	}
	return result, nil
}

// detectQuickCompletions 统计低于阈值的快速完成任务及占比
// 只统计已完成且有可测时长的任务，时长为零视为无数据
func (a *RedundancyAnalyzer) detectQuickCompletions(history *domain.ProjectHistory) ([]analysis.QuickCompletion, float64) {
	var quick []analysis.QuickCompletion
	measured := 0
	for _, taskID := range sortedTaskIDs(history) {
		task := history.Tasks[taskID]
		if task.Status != domain.TaskStatusCompleted {
			continue
		}
		duration := task.DurationSeconds()
		if duration <= 0 {
			continue
		}
		measured++
		if duration < a.thresholdSeconds {
			quick = append(quick, analysis.QuickCompletion{
				TaskID:           task.TaskID,
				DurationSeconds:  duration,
				ThresholdSeconds: a.thresholdSeconds,
			})
		}
	}
	if measured == 0 {
		return quick, 0
	}
	return quick, float64(len(quick)) / float64(measured)
}

// mapRedundantPairs 类型化提取冗余任务对
// 缺少任一任务标识的条目整条拒绝
func mapRedundantPairs(parsed map[string]interface{}) []analysis.RedundantTaskPair {
	var pairs []analysis.RedundantTaskPair
	for _, obj := range objectSliceField(parsed, "redundant_pairs") {
		taskA := stringField(obj, "task_a")
		taskB := stringField(obj, "task_b")
		if taskA == "" || taskB == "" {
			continue
		}
		pairs = append(pairs, analysis.RedundantTaskPair{
			TaskA:           taskA,
			TaskB:           taskB,
			OverlapScore:    floatField(obj, "overlap_score", 0),
			Evidence:        stringField(obj, "evidence"),
			TimeWastedHours: floatField(obj, "time_wasted_hours", 0),
			Citation:        stringField(obj, "citation"),
		})
	}
	return pairs
}

// recommendTier 根据冗余程度推荐项目复杂度档位
// 冗余越重，说明流程对当前项目过重，档位越该降低
func recommendTier(score, quickRate float64) string {
	switch {
	case score > 0.4 || quickRate > 0.4:
		return analysis.TierPrototype
	case score > 0.2 || quickRate > 0.2:
		return analysis.TierStandard
	default:
		return analysis.TierEnterprise
	}
}

// sortedTaskIDs 任务 ID 升序，保证遍历顺序确定
func sortedTaskIDs(history *domain.ProjectHistory) []string {
	ids := make([]string, 0, len(history.Tasks))
	for id := range history.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
