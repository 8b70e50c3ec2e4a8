package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
)

// DecisionImpactAnalyzer 决策影响分析器
// 追踪一项架构决策在后续任务中的直接与间接影响
type DecisionImpactAnalyzer struct {
	engine *Engine
}

// NewDecisionImpactAnalyzer 创建决策影响分析器
func NewDecisionImpactAnalyzer(engine *Engine) *DecisionImpactAnalyzer {
	return &DecisionImpactAnalyzer{engine: engine}
}

// decisionImpactContext 决策影响分析的类型化上下文
type decisionImpactContext struct {
	decision *domain.Decision
	history  *domain.ProjectHistory
}

// toTemplateContext 展开为模板上下文
// 后续活动取决策之后的时间线事件以及受影响任务的状态
func (c decisionImpactContext) toTemplateContext() map[string]string {
	var activity strings.Builder

	for i := range c.history.Timeline {
		event := c.history.Timeline[i]
		if !event.Timestamp.After(c.decision.Timestamp) {
			continue
		}
		fmt.Fprintf(&activity, "- [%s] %s task=%s agent=%s: %s\n",
			event.Timestamp.Format("2006-01-02T15:04:05Z"),
			event.EventType, event.TaskID, event.AgentID, event.Description,
		)
	}

	for _, taskID := range c.decision.AffectedTasks {
		if task, ok := c.history.Tasks[taskID]; ok {
			fmt.Fprintf(&activity, "- affected task %s (%s): status=%s blockers=%s\n",
				task.TaskID, task.TaskName, task.Status, formatStringList(task.Blockers))
		}
	}

	return map[string]string{
		"decision_id":         c.decision.ID,
		"agent_id":            c.decision.AgentID,
		"timestamp":           c.decision.Timestamp.Format("2006-01-02T15:04:05Z"),
		"what":                orPlaceholder(c.decision.What),
		"why":                 orPlaceholder(c.decision.Why),
		"impact":              orPlaceholder(c.decision.Impact),
		"affected_tasks":      formatStringList(c.decision.AffectedTasks),
		"subsequent_activity": orPlaceholder(strings.TrimRight(activity.String(), "\n")),
	}
}

// Analyze 分析单项决策的影响
func (a *DecisionImpactAnalyzer) Analyze(ctx context.Context, projectID string, decision *domain.Decision, history *domain.ProjectHistory, callback analysis.ProgressCallback, useCache bool) (*analysis.DecisionImpactAnalysis, error) {
	contextData := decisionImpactContext{decision: decision, history: history}.toTemplateContext()

	response, err := a.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeDecisionImpact,
		ProjectID:      projectID,
		TaskID:         decision.TaskID,
		ContextData:    contextData,
		PromptTemplate: decisionImpactTemplate,
	}, callback, useCache)
	if err != nil {
		return nil, fmt.Errorf("decision impact analysis for %s: %w", decision.ID, err)
	}

	result := &analysis.DecisionImpactAnalysis{
		DecisionID:        decision.ID,
		ImpactChains:      mapImpactChains(response.Parsed),
		UnexpectedImpacts: mapUnexpectedImpacts(response.Parsed),
		Interpretation:    stringField(response.Parsed, "interpretation"),
		Recommendations:   stringSliceField(response.Parsed, "recommendations"),
		Input:             contextData,
	}
	return result, nil
}

// mapImpactChains 类型化提取影响链
func mapImpactChains(parsed map[string]interface{}) []analysis.ImpactChain {
	var chains []analysis.ImpactChain
	for _, obj := range objectSliceField(parsed, "impact_chains") {
		direct := stringSliceField(obj, "direct_impacts")
		indirect := stringSliceField(obj, "indirect_impacts")
		if len(direct) == 0 && len(indirect) == 0 {
			continue
		}
		chains = append(chains, analysis.ImpactChain{
			DirectImpacts:   direct,
			IndirectImpacts: indirect,
			Depth:           intField(obj, "depth"),
			Citation:        stringField(obj, "citation"),
		})
	}
	return chains
}

// mapUnexpectedImpacts 类型化提取未预期影响
func mapUnexpectedImpacts(parsed map[string]interface{}) []analysis.UnexpectedImpact {
	var impacts []analysis.UnexpectedImpact
	for _, obj := range objectSliceField(parsed, "unexpected_impacts") {
		actual := stringField(obj, "actual_impact")
		if actual == "" {
			continue
		}
		impacts = append(impacts, analysis.UnexpectedImpact{
			Anticipated:  boolField(obj, "anticipated"),
			ActualImpact: actual,
			Severity:     stringField(obj, "severity"),
		})
	}
	return impacts
}
