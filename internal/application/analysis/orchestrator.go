package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hindsight/backend/internal/domain/analysis"
	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// runOperation 编排运行的顶层进度操作名
const runOperation = "project_analysis"

// ProjectAggregator 编排器所需的历史聚合能力
type ProjectAggregator interface {
	AggregateProject(projectID string, includeConversations bool) (*domain.ProjectHistory, error)
}

// Orchestrator 诊断编排器
// 聚合项目历史，按 Scope 依次运行各分析器，单个分析器失败不中断整次运行
type Orchestrator struct {
	aggregator         ProjectAggregator
	engine             *Engine
	requirement        *RequirementAnalyzer
	decisionImpact     *DecisionImpactAnalyzer
	instructionQuality *InstructionQualityAnalyzer
	failureDiagnosis   *FailureDiagnosisAnalyzer
	redundancy         *RedundancyAnalyzer
	logger             *slog.Logger
}

// NewOrchestrator 创建诊断编排器
func NewOrchestrator(
	aggregator ProjectAggregator,
	engine *Engine,
	requirement *RequirementAnalyzer,
	decisionImpact *DecisionImpactAnalyzer,
	instructionQuality *InstructionQualityAnalyzer,
	failureDiagnosis *FailureDiagnosisAnalyzer,
	redundancy *RedundancyAnalyzer,
) *Orchestrator {
	return &Orchestrator{
		aggregator:         aggregator,
		engine:             engine,
		requirement:        requirement,
		decisionImpact:     decisionImpact,
		instructionQuality: instructionQuality,
		failureDiagnosis:   failureDiagnosis,
		redundancy:         redundancy,
		logger:             log.NewModuleLogger("analysis", "orchestrator"),
	}
}

// runPlan 根据 Scope 和实际数据裁剪后真正要执行的步骤
type runPlan struct {
	requirement        bool
	decisionImpact     bool
	instructionQuality bool
	failureDiagnosis   bool
	redundancy         bool
}

// steps 计划内的步骤数
func (p runPlan) steps() int {
	count := 0
	for _, enabled := range []bool{p.requirement, p.decisionImpact, p.instructionQuality, p.failureDiagnosis, p.redundancy} {
		if enabled {
			count++
		}
	}
	return count
}

// buildPlan 把 Scope 与项目数据求交
// 启用了但没有对应数据的分析器直接整类跳过，不产生 Provider 调用
func buildPlan(scope analysis.Scope, history *domain.ProjectHistory) runPlan {
	hasTasks := len(history.Tasks) > 0
	return runPlan{
		requirement:        scope.Requirement && hasTasks,
		decisionImpact:     scope.DecisionImpact && len(history.Decisions) > 0,
		instructionQuality: scope.InstructionQuality && hasTasks,
		failureDiagnosis:   scope.FailureDiagnosis && len(history.FailedTasks()) > 0,
		redundancy:         scope.TaskRedundancy && hasTasks,
	}
}

// Run 执行一次完整的项目诊断
func (o *Orchestrator) Run(ctx context.Context, projectID string, scope analysis.Scope, callback analysis.ProgressCallback, useCache bool) (*analysis.Report, error) {
	startedAt := time.Now().UTC()

	history, err := o.aggregator.AggregateProject(projectID, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrate project %s: %w", projectID, err)
	}

	plan := buildPlan(scope, history)
	guard := BeginOperation(callback, runOperation, plan.steps()+1)
	defer guard.Release()

	report := &analysis.Report{
		ProjectID: projectID,
		Scope:     scope,
	}
	var scopesRun []string
	var analyzerErrors []string

	taskIDs := sortedTaskIDs(history)

	if plan.requirement {
		for _, taskID := range taskIDs {
			result, err := o.requirement.Analyze(ctx, projectID, history.Tasks[taskID], callback, useCache)
			if err != nil {
				analyzerErrors = append(analyzerErrors, analyzerError(analysis.TypeRequirementDivergence, taskID, err))
				o.logger.Warn("需求保真度分析失败，跳过该任务", "task_id", taskID, "error", err)
				continue
			}
			report.Requirements = append(report.Requirements, *result)
		}
		scopesRun = append(scopesRun, string(analysis.TypeRequirementDivergence))
		guard.Advance("requirement divergence done")
	}

	if plan.decisionImpact {
		for i := range history.Decisions {
			decision := &history.Decisions[i]
			result, err := o.decisionImpact.Analyze(ctx, projectID, decision, history, callback, useCache)
			if err != nil {
				analyzerErrors = append(analyzerErrors, analyzerError(analysis.TypeDecisionImpact, decision.ID, err))
				o.logger.Warn("决策影响分析失败，跳过该决策", "decision_id", decision.ID, "error", err)
				continue
			}
			report.DecisionImpacts = append(report.DecisionImpacts, *result)
		}
		scopesRun = append(scopesRun, string(analysis.TypeDecisionImpact))
		guard.Advance("decision impact done")
	}

	if plan.instructionQuality {
		for _, taskID := range taskIDs {
			result, err := o.instructionQuality.Analyze(ctx, projectID, history.Tasks[taskID], callback, useCache)
			if err != nil {
				analyzerErrors = append(analyzerErrors, analyzerError(analysis.TypeInstructionQuality, taskID, err))
				o.logger.Warn("指令质量分析失败，跳过该任务", "task_id", taskID, "error", err)
				continue
			}
			report.InstructionQuality = append(report.InstructionQuality, *result)
		}
		scopesRun = append(scopesRun, string(analysis.TypeInstructionQuality))
		guard.Advance("instruction quality done")
	}

	if plan.failureDiagnosis {
		for _, taskID := range taskIDs {
			task := history.Tasks[taskID]
			if task.Status != domain.TaskStatusFailed {
				continue
			}
			result, err := o.failureDiagnosis.Analyze(ctx, projectID, task, callback, useCache)
			if err != nil {
				analyzerErrors = append(analyzerErrors, analyzerError(analysis.TypeFailureDiagnosis, taskID, err))
				o.logger.Warn("失败诊断分析失败，跳过该任务", "task_id", taskID, "error", err)
				continue
			}
			report.FailureDiagnoses = append(report.FailureDiagnoses, *result)
		}
		scopesRun = append(scopesRun, string(analysis.TypeFailureDiagnosis))
		guard.Advance("failure diagnosis done")
	}

	if plan.redundancy {
		result, err := o.redundancy.Analyze(ctx, projectID, history, callback, useCache)
		if err != nil {
			analyzerErrors = append(analyzerErrors, analyzerError(analysis.TypeTaskRedundancy, "", err))
			o.logger.Warn("任务冗余分析失败", "project_id", projectID, "error", err)
		} else {
			report.Redundancy = result
		}
		scopesRun = append(scopesRun, string(analysis.TypeTaskRedundancy))
		guard.Advance("task redundancy done")
	}

	report.Summary = o.summarize(ctx, projectID, report, callback, useCache)
	guard.Advance("summary done")

	report.Metadata = analysis.RunMetadata{
		TasksAnalyzed:     len(history.Tasks),
		DecisionsAnalyzed: len(history.Decisions),
		ScopesRun:         scopesRun,
		StartedAt:         startedAt,
		CompletedAt:       time.Now().UTC(),
		AnalyzerErrors:    analyzerErrors,
	}
	return report, nil
}

// summarize 基于实际运行过的分析器输出合成执行摘要
// 摘要失败降级为空字符串，不影响报告主体
func (o *Orchestrator) summarize(ctx context.Context, projectID string, report *analysis.Report, callback analysis.ProgressCallback, useCache bool) string {
	findings := collectFindings(report)
	if findings == "" {
		return ""
	}

	response, err := o.engine.Analyze(ctx, &analysis.AnalysisRequest{
		Type:           analysis.TypeSummary,
		ProjectID:      projectID,
		ContextData:    map[string]string{"findings": findings},
		PromptTemplate: summaryTemplate,
	}, callback, useCache)
	if err != nil {
		o.logger.Warn("摘要合成失败", "project_id", projectID, "error", err)
		return ""
	}

	if summary := stringField(response.Parsed, "summary"); summary != "" {
		return summary
	}
	return strings.TrimSpace(response.RawText)
}

// collectFindings 把各分析器的结论压成摘要提示词的输入
// 只包含本次真正运行过的分析器
func collectFindings(report *analysis.Report) string {
	var lines []string

	for _, r := range report.Requirements {
		lines = append(lines, fmt.Sprintf("[requirement %s] fidelity %.2f, %d divergences: %s",
			r.TaskID, r.FidelityScore, len(r.Divergences), r.Interpretation))
	}
	for _, d := range report.DecisionImpacts {
		lines = append(lines, fmt.Sprintf("[decision %s] %d impact chains, %d unexpected impacts: %s",
			d.DecisionID, len(d.ImpactChains), len(d.UnexpectedImpacts), d.Interpretation))
	}
	for _, q := range report.InstructionQuality {
		lines = append(lines, fmt.Sprintf("[instructions %s] overall %.2f, time variance %.2f: %s",
			q.TaskID, q.Score.Overall, q.TimeVariance, q.Interpretation))
	}
	for _, f := range report.FailureDiagnoses {
		lines = append(lines, fmt.Sprintf("[failure %s] %d causes, %d preventions: %s",
			f.TaskID, len(f.Causes), len(f.Preventions), f.Interpretation))
	}
	if report.Redundancy != nil {
		lines = append(lines, fmt.Sprintf("[redundancy] score %.2f, %d pairs, quick rate %.2f, tier %s: %s",
			report.Redundancy.RedundancyScore, len(report.Redundancy.RedundantPairs),
			report.Redundancy.QuickCompletionRate, report.Redundancy.RecommendedTier,
			report.Redundancy.Interpretation))
	}

	return strings.Join(lines, "\n")
}

// analyzerError 统一的分析器失败记录格式
func analyzerError(analysisType analysis.AnalysisType, subject string, err error) string {
	if subject == "" {
		return fmt.Sprintf("%s: %v", analysisType, err)
	}
	return fmt.Sprintf("%s %s: %v", analysisType, subject, err)
}
