package analysis

import (
	"regexp"
	"strings"

	"github.com/hindsight/backend/internal/domain/analysis"
)

// trailingInstruction 附加在所有提示词末尾的输出约束
const trailingInstruction = "\n\nRespond with JSON only. Cite every claim with a task/decision id and timestamp."

// placeholderPattern 模板占位符（{snake_case}）
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// systemInstructions 按分析类型返回系统指令
func systemInstructions(analysisType analysis.AnalysisType) string {
	switch analysisType {
	case analysis.TypeRequirementDivergence:
		return "You are an expert at comparing software requirements against what was actually built. " +
			"Base every finding on the provided task history; never invent requirements or implementations."
	case analysis.TypeDecisionImpact:
		return "You are an expert at tracing the downstream impact of architectural decisions across tasks. " +
			"Distinguish direct from indirect impacts and flag impacts the decision author did not anticipate."
	case analysis.TypeInstructionQuality:
		return "You are an expert at evaluating the clarity, completeness and specificity of task instructions " +
			"given to autonomous agents. Score each dimension between 0 and 1."
	case analysis.TypeFailureDiagnosis:
		return "You are an expert at diagnosing why a software task failed. " +
			"Classify each root cause as technical, requirements, process or communication, and back it with evidence."
	case analysis.TypeTaskRedundancy:
		return "You are an expert at detecting redundant or overlapping work in a project's task set. " +
			"Use the quick-completion signals and task summaries provided; do not speculate beyond them."
	case analysis.TypeSummary:
		return "You are an expert at synthesizing software project diagnoses into an executive summary. " +
			"Only reference findings that appear in the provided analyzer output."
	default:
		return "You are an expert software project analyst. Base every finding on the provided data."
	}
}

// 各分析器的用户模板
const (
	requirementTemplate = `Analyze how faithfully the implementation matched the requirements for this task.

Task: {task_name} (id: {task_id}, status: {status})
Instructions the agent received:
{instructions}

What the agent reported:
{conversation}

Decisions made during the task:
{decisions}

Artifacts produced:
{artifacts}

Return a JSON object:
{
  "fidelity_score": 0.0-1.0,
  "divergences": [{"requirement": "...", "implementation": "...", "severity": "minor|major|critical", "citation": "...", "impact": "..."}],
  "interpretation": "...",
  "recommendations": ["..."]
}`

	decisionImpactTemplate = `Trace the impact of this architectural decision across the project.

Decision (id: {decision_id}, by {agent_id} at {timestamp}):
What: {what}
Why: {why}
Anticipated impact: {impact}
Tasks the author expected to be affected: {affected_tasks}

Subsequent task activity:
{subsequent_activity}

Return a JSON object:
{
  "impact_chains": [{"direct_impacts": ["..."], "indirect_impacts": ["..."], "depth": 1, "citation": "..."}],
  "unexpected_impacts": [{"anticipated": false, "actual_impact": "...", "severity": "minor|major|critical"}],
  "interpretation": "...",
  "recommendations": ["..."]
}`

	instructionQualityTemplate = `Evaluate the quality of the instructions this agent received.

Task: {task_name} (id: {task_id})
Instructions:
{instructions}

Outcome: status {status}, estimated {estimated_hours}h, actual {actual_hours}h, time variance {time_variance}
Reported blockers: {blockers}

Return a JSON object:
{
  "score": {"clarity": 0.0-1.0, "completeness": 0.0-1.0, "specificity": 0.0-1.0, "overall": 0.0-1.0},
  "issues": [{"text": "...", "issue": "...", "suggestion": "...", "citation": "..."}],
  "interpretation": "...",
  "recommendations": ["..."]
}`

	failureDiagnosisTemplate = `Diagnose why this task failed.

Task: {task_name} (id: {task_id}, agent: {agent_id})
Instructions:
{instructions}

Reported blockers: {blockers}
Conversation transcript:
{conversation}

Decisions affecting this task:
{decisions}

Return a JSON object:
{
  "causes": [{"category": "technical|requirements|process|communication", "root_cause": "...", "contributing_factors": ["..."], "evidence": ["..."], "citation": "..."}],
  "preventions": [{"strategy": "...", "rationale": "...", "effort": "low|medium|high", "priority": "low|medium|high"}],
  "interpretation": "...",
  "recommendations": ["..."]
}`

	redundancyTemplate = `Detect redundant or overlapping work in this project's task set.

Task summaries:
{task_summaries}

Quick completions (tasks finished suspiciously fast, under {threshold_seconds}s):
{quick_completions}
Quick completion rate: {quick_completion_rate}

Flattened conversations:
{conversations}

Return a JSON object:
{
  "redundancy_score": 0.0-1.0,
  "redundant_pairs": [{"task_a": "...", "task_b": "...", "overlap_score": 0.0-1.0, "evidence": "...", "time_wasted_hours": 0.0, "citation": "..."}],
  "interpretation": "...",
  "recommendations": ["..."]
}`

	summaryTemplate = `Synthesize a concise executive summary of this project diagnosis.

Analyzer findings:
{findings}

Return a JSON object:
{
  "summary": "..."
}`
)

// formatTemplate 将上下文代入模板
// 任何占位符在上下文中缺失时，整个模板原样返回而不是让分析失败
func formatTemplate(template string, context map[string]string) string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	for _, match := range matches {
		if _, ok := context[match[1]]; !ok {
			return template
		}
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		key := placeholder[1 : len(placeholder)-1]
		return context[key]
	})
}

// templatePlaceholders 模板引用的占位符集合
func templatePlaceholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	var keys []string
	seen := make(map[string]bool)
	for _, match := range matches {
		if !seen[match[1]] {
			seen[match[1]] = true
			keys = append(keys, match[1])
		}
	}
	return keys
}

// assemblePrompt 组装最终提示词
func assemblePrompt(analysisType analysis.AnalysisType, template string, context map[string]string) string {
	var b strings.Builder
	b.WriteString(systemInstructions(analysisType))
	b.WriteString("\n\n")
	b.WriteString(formatTemplate(template, context))
	b.WriteString(trailingInstruction)
	return b.String()
}
