package analysis

import (
	"context"
	"fmt"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
)

// RequirementAnalyzer 需求保真度分析器
// 对比代理收到的指令与其实际汇报的工作，找出偏离点
type RequirementAnalyzer struct {
	engine *Engine
}

// NewRequirementAnalyzer 创建需求保真度分析器
func NewRequirementAnalyzer(engine *Engine) *RequirementAnalyzer {
	return &RequirementAnalyzer{engine: engine}
}

// requirementContext 需求分析的类型化上下文
type requirementContext struct {
	task *domain.TaskHistory
}

// toTemplateContext 展开为模板上下文
func (c requirementContext) toTemplateContext() map[string]string {
	return map[string]string{
		"task_name":    orPlaceholder(c.task.TaskName),
		"task_id":      c.task.TaskID,
		"status":       c.task.Status,
		"instructions": orPlaceholder(c.task.Instructions),
		"conversation": formatMessages(c.task.Conversation),
		"decisions":    formatDecisions(c.task.Decisions),
		"artifacts":    formatArtifacts(c.task.Artifacts),
	}
}

// Analyze 分析单个任务的需求保真度
func (a *RequirementAnalyzer) Analyze(ctx context.Context, projectID string, task *domain.TaskHistory, callback analysis.ProgressCallback, useCache bool) (*analysis.RequirementAnalysis, error) {
	contextData := requirementContext{task: task}.toTemplateContext()

	response, err := a.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeRequirementDivergence,
		ProjectID:      projectID,
		TaskID:         task.TaskID,
		ContextData:    contextData,
		PromptTemplate: requirementTemplate,
	}, callback, useCache)
	if err != nil {
		return nil, fmt.Errorf("requirement analysis for task %s: %w", task.TaskID, err)
	}

	result := &analysis.RequirementAnalysis{
		TaskID:          task.TaskID,
		FidelityScore:   floatField(response.Parsed, "fidelity_score", 0),
		Divergences:     mapDivergences(response.Parsed),
		Interpretation:  stringField(response.Parsed, "interpretation"),
		Recommendations: stringSliceField(response.Parsed, "recommendations"),
		Input:           contextData,
	}
	return result, nil
}

// mapDivergences 类型化提取偏离列表
// severity 不在既定集合内的条目整条拒绝
func mapDivergences(parsed map[string]interface{}) []analysis.Divergence {
	var divergences []analysis.Divergence
	for _, obj := range objectSliceField(parsed, "divergences") {
		severity := stringField(obj, "severity")
		if !validSeverity(severity) {
			continue
		}
		requirement := stringField(obj, "requirement")
		if requirement == "" {
			continue
		}
		divergences = append(divergences, analysis.Divergence{
			Requirement:    requirement,
			Implementation: stringField(obj, "implementation"),
			Severity:       severity,
			Citation:       stringField(obj, "citation"),
			Impact:         stringField(obj, "impact"),
		})
	}
	return divergences
}

// validSeverity 严重度是否在既定集合内
func validSeverity(severity string) bool {
	switch severity {
	case analysis.SeverityMinor, analysis.SeverityMajor, analysis.SeverityCritical:
		return true
	}
	return false
}
