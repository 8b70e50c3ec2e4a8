package analysis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
)

// InstructionQualityAnalyzer 指令质量分析器
// 评估代理实际收到的指令的清晰度/完整度/具体度，并把
// timeVariance 作为量化信号喂进提示词上下文
type InstructionQualityAnalyzer struct {
	engine *Engine
}

// NewInstructionQualityAnalyzer 创建指令质量分析器
func NewInstructionQualityAnalyzer(engine *Engine) *InstructionQualityAnalyzer {
	return &InstructionQualityAnalyzer{engine: engine}
}

// instructionQualityContext 指令质量分析的类型化上下文
type instructionQualityContext struct {
	task         *domain.TaskHistory
	timeVariance float64
}

// toTemplateContext 展开为模板上下文
func (c instructionQualityContext) toTemplateContext() map[string]string {
	return map[string]string{
		"task_name":       orPlaceholder(c.task.TaskName),
		"task_id":         c.task.TaskID,
		"instructions":    orPlaceholder(c.task.Instructions),
		"status":          c.task.Status,
		"estimated_hours": strconv.FormatFloat(c.task.EstimatedHours, 'f', -1, 64),
		"actual_hours":    strconv.FormatFloat(c.task.ActualHours, 'f', -1, 64),
		"time_variance":   strconv.FormatFloat(c.timeVariance, 'f', 2, 64),
		"blockers":        formatStringList(c.task.Blockers),
	}
}

// Analyze 分析单个任务的指令质量
func (a *InstructionQualityAnalyzer) Analyze(ctx context.Context, projectID string, task *domain.TaskHistory, callback analysis.ProgressCallback, useCache bool) (*analysis.InstructionQualityAnalysis, error) {
	timeVariance := computeTimeVariance(task)
	contextData := instructionQualityContext{task: task, timeVariance: timeVariance}.toTemplateContext()

	response, err := a.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeInstructionQuality,
		ProjectID:      projectID,
		TaskID:         task.TaskID,
		ContextData:    contextData,
		PromptTemplate: instructionQualityTemplate,
	}, callback, useCache)
	if err != nil {
		return nil, fmt.Errorf("instruction quality analysis for task %s: %w", task.TaskID, err)
	}

	result := &analysis.InstructionQualityAnalysis{
		TaskID:          task.TaskID,
		Score:           mapQualityScore(response.Parsed),
		Issues:          mapAmbiguityIssues(response.Parsed),
		TimeVariance:    timeVariance,
		Interpretation:  stringField(response.Parsed, "interpretation"),
		Recommendations: stringSliceField(response.Parsed, "recommendations"),
		Input:           contextData,
	}
	return result, nil
}

// computeTimeVariance 实际耗时与估算的比值；无估算时默认 1.0
func computeTimeVariance(task *domain.TaskHistory) float64 {
	if task.EstimatedHours <= 0 {
		return 1.0
	}
	return task.ActualHours / task.EstimatedHours
}

// mapQualityScore 类型化提取质量评分
func mapQualityScore(parsed map[string]interface{}) analysis.QualityScore {
	score := objectField(parsed, "score")
	if score == nil {
		return analysis.QualityScore{}
	}
	return analysis.QualityScore{
		Clarity:      floatField(score, "clarity", 0),
		Completeness: floatField(score, "completeness", 0),
		Specificity:  floatField(score, "specificity", 0),
		Overall:      floatField(score, "overall", 0),
	}
}

// mapAmbiguityIssues 类型化提取歧义问题列表
func mapAmbiguityIssues(parsed map[string]interface{}) []analysis.AmbiguityIssue {
	var issues []analysis.AmbiguityIssue
	for _, obj := range objectSliceField(parsed, "issues") {
		issue := stringField(obj, "issue")
		if issue == "" {
			continue
		}
		issues = append(issues, analysis.AmbiguityIssue{
			Text:       stringField(obj, "text"),
			Issue:      issue,
			Suggestion: stringField(obj, "suggestion"),
			Citation:   stringField(obj, "citation"),
		})
	}
	return issues
}
