package analysis

import (
	"context"
	"fmt"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
)

// FailureDiagnosisAnalyzer 失败诊断分析器
// 只对 status == failed 的任务运行，归因并给出预防策略
type FailureDiagnosisAnalyzer struct {
	engine *Engine
}

// NewFailureDiagnosisAnalyzer 创建失败诊断分析器
func NewFailureDiagnosisAnalyzer(engine *Engine) *FailureDiagnosisAnalyzer {
	return &FailureDiagnosisAnalyzer{engine: engine}
}

// failureDiagnosisContext 失败诊断的类型化上下文
type failureDiagnosisContext struct {
	task *domain.TaskHistory
}

// toTemplateContext 展开为模板上下文
func (c failureDiagnosisContext) toTemplateContext() map[string]string {
	return map[string]string{
		"task_name":    orPlaceholder(c.task.TaskName),
		"task_id":      c.task.TaskID,
		"agent_id":     orPlaceholder(c.task.AgentID),
		"instructions": orPlaceholder(c.task.Instructions),
		"blockers":     formatStringList(c.task.Blockers),
		"conversation": formatMessages(c.task.Conversation),
		"decisions":    formatDecisions(c.task.Decisions),
	}
}

// Analyze 诊断单个失败任务
func (a *FailureDiagnosisAnalyzer) Analyze(ctx context.Context, projectID string, task *domain.TaskHistory, callback analysis.ProgressCallback, useCache bool) (*analysis.FailureDiagnosisAnalysis, error) {
	contextData := failureDiagnosisContext{task: task}.toTemplateContext()

	response, err := a.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeFailureDiagnosis,
		ProjectID:      projectID,
		TaskID:         task.TaskID,
		ContextData:    contextData,
		PromptTemplate: failureDiagnosisTemplate,
	}, callback, useCache)
	if err != nil {
		return nil, fmt.Errorf("failure diagnosis for task %s: %w", task.TaskID, err)
	}

	result := &analysis.FailureDiagnosisAnalysis{
		TaskID:          task.TaskID,
		Causes:          mapFailureCauses(response.Parsed),
		Preventions:     mapPreventions(response.Parsed),
		Interpretation:  stringField(response.Parsed, "interpretation"),
		Recommendations: stringSliceField(response.Parsed, "recommendations"),
		Input:           contextData,
	}
	return result, nil
}

// mapFailureCauses 类型化提取失败根因
// category 不在既定分类内的条目整条拒绝
func mapFailureCauses(parsed map[string]interface{}) []analysis.FailureCause {
	var causes []analysis.FailureCause
	for _, obj := range objectSliceField(parsed, "causes") {
		category := stringField(obj, "category")
		if !validCauseCategory(category) {
			continue
		}
		rootCause := stringField(obj, "root_cause")
		if rootCause == "" {
			continue
		}
		causes = append(causes, analysis.FailureCause{
			Category:            category,
			RootCause:           rootCause,
			ContributingFactors: stringSliceField(obj, "contributing_factors"),
			Evidence:            stringSliceField(obj, "evidence"),
			Citation:            stringField(obj, "citation"),
		})
	}
	return causes
}

// mapPreventions 类型化提取预防策略
func mapPreventions(parsed map[string]interface{}) []analysis.PreventionStrategy {
	var preventions []analysis.PreventionStrategy
	for _, obj := range objectSliceField(parsed, "preventions") {
		strategy := stringField(obj, "strategy")
		if strategy == "" {
			continue
		}
		preventions = append(preventions, analysis.PreventionStrategy{
			Strategy:  strategy,
			Rationale: stringField(obj, "rationale"),
			Effort:    normalizeLevel(stringField(obj, "effort")),
			Priority:  normalizeLevel(stringField(obj, "priority")),
		})
	}
	return preventions
}

// validCauseCategory 根因分类是否在既定集合内
func validCauseCategory(category string) bool {
	switch category {
	case analysis.CauseTechnical, analysis.CauseRequirements, analysis.CauseProcess, analysis.CauseCommunication:
		return true
	}
	return false
}

// normalizeLevel 档位不在既定集合内时归为 medium
func normalizeLevel(level string) string {
	switch level {
	case analysis.LevelLow, analysis.LevelMedium, analysis.LevelHigh:
		return level
	}
	return analysis.LevelMedium
}
