// Package analysis 定义诊断分析管线的领域模型
package analysis

import "time"

// AnalysisType 分析类型标识
type AnalysisType string

const (
	TypeRequirementDivergence AnalysisType = "requirement_divergence"
	TypeDecisionImpact        AnalysisType = "decision_impact"
	TypeInstructionQuality    AnalysisType = "instruction_quality"
	TypeFailureDiagnosis      AnalysisType = "failure_diagnosis"
	TypeTaskRedundancy        AnalysisType = "task_redundancy"
	TypeSummary               AnalysisType = "summary"
)

// 严重度等级
const (
	SeverityMinor    = "minor"
	SeverityMajor    = "major"
	SeverityCritical = "critical"
)

// 失败原因分类
const (
	CauseTechnical     = "technical"
	CauseRequirements  = "requirements"
	CauseProcess       = "process"
	CauseCommunication = "communication"
)

// 投入/优先级档位
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// 推荐的项目复杂度档位
const (
	TierPrototype  = "prototype"
	TierStandard   = "standard"
	TierEnterprise = "enterprise"
)

// AnalysisRequest 一次 LLM 分析请求
// ContextData 由各分析器的类型化上下文经 ToTemplateContext 展开而来
type AnalysisRequest struct {
	Type           AnalysisType      `json:"type"`
	ProjectID      string            `json:"project_id"`
	TaskID         string            `json:"task_id,omitempty"` // 为空表示项目级分析
	ContextData    map[string]string `json:"context_data"`
	PromptTemplate string            `json:"prompt_template"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature,omitempty"`
}

// AnalysisResponse 一次 LLM 分析响应
// Parsed 为防御性解析恢复出的 JSON 对象；恢复失败时为
// {"raw_output": ..., "parse_error": ...} 包装，调用方总能拿到结果
type AnalysisResponse struct {
	RawText    string                 `json:"raw_text"`
	Parsed     map[string]interface{} `json:"parsed"`
	Confidence float64                `json:"confidence"`
	Timestamp  time.Time              `json:"timestamp"`
	FromCache  bool                   `json:"from_cache"`
}

// ParseFailed 响应是否处于解析失败的降级包装状态
func (r *AnalysisResponse) ParseFailed() bool {
	if r.Parsed == nil {
		return true
	}
	_, ok := r.Parsed["parse_error"]
	return ok
}

// Scope 单次编排运行启用的分析器集合
type Scope struct {
	Requirement        bool `json:"requirement"`
	DecisionImpact     bool `json:"decision_impact"`
	InstructionQuality bool `json:"instruction_quality"`
	FailureDiagnosis   bool `json:"failure_diagnosis"`
	TaskRedundancy     bool `json:"task_redundancy"`
}

// DefaultScope 默认启用全部分析器
func DefaultScope() Scope {
	return Scope{
		Requirement:        true,
		DecisionImpact:     true,
		InstructionQuality: true,
		FailureDiagnosis:   true,
		TaskRedundancy:     true,
	}
}

// Enabled 启用的分析器名称列表
func (s Scope) Enabled() []string {
	var names []string
	if s.Requirement {
		names = append(names, string(TypeRequirementDivergence))
	}
	if s.DecisionImpact {
		names = append(names, string(TypeDecisionImpact))
	}
	if s.InstructionQuality {
		names = append(names, string(TypeInstructionQuality))
	}
	if s.FailureDiagnosis {
		names = append(names, string(TypeFailureDiagnosis))
	}
	if s.TaskRedundancy {
		names = append(names, string(TypeTaskRedundancy))
	}
	return names
}

// Divergence 需求与实现的单处偏离
type Divergence struct {
	Requirement    string `json:"requirement"`
	Implementation string `json:"implementation"`
	Severity       string `json:"severity"` // minor / major / critical
	Citation       string `json:"citation"`
	Impact         string `json:"impact"`
}

// RequirementAnalysis 需求保真度分析结果
type RequirementAnalysis struct {
	TaskID          string            `json:"task_id"`
	FidelityScore   float64           `json:"fidelity_score"` // 0-1
	Divergences     []Divergence      `json:"divergences"`
	Interpretation  string            `json:"interpretation"`
	Recommendations []string          `json:"recommendations"`
	Input           map[string]string `json:"input"` // 分析所依据的原始上下文
}

// ImpactChain 决策影响链
type ImpactChain struct {
	DirectImpacts   []string `json:"direct_impacts"`
	IndirectImpacts []string `json:"indirect_impacts"`
	Depth           int      `json:"depth"`
	Citation        string   `json:"citation"`
}

// UnexpectedImpact 未预期的决策影响
type UnexpectedImpact struct {
	Anticipated  bool   `json:"anticipated"`
	ActualImpact string `json:"actual_impact"`
	Severity     string `json:"severity"`
}

// DecisionImpactAnalysis 决策影响分析结果
type DecisionImpactAnalysis struct {
	DecisionID        string             `json:"decision_id"`
	ImpactChains      []ImpactChain      `json:"impact_chains"`
	UnexpectedImpacts []UnexpectedImpact `json:"unexpected_impacts"`
	Interpretation    string             `json:"interpretation"`
	Recommendations   []string           `json:"recommendations"`
	Input             map[string]string  `json:"input"`
}

// QualityScore 指令质量评分
type QualityScore struct {
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
	Specificity  float64 `json:"specificity"`
	Overall      float64 `json:"overall"`
}

// AmbiguityIssue 指令中的歧义问题
type AmbiguityIssue struct {
	Text       string `json:"text"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
	Citation   string `json:"citation"`
}

// InstructionQualityAnalysis 指令质量分析结果
// TimeVariance = actualHours / estimatedHours（无估算时为 1.0）
type InstructionQualityAnalysis struct {
	TaskID          string            `json:"task_id"`
	Score           QualityScore      `json:"score"`
	Issues          []AmbiguityIssue  `json:"issues"`
	TimeVariance    float64           `json:"time_variance"`
	Interpretation  string            `json:"interpretation"`
	Recommendations []string          `json:"recommendations"`
	Input           map[string]string `json:"input"`
}

// FailureCause 失败根因
type FailureCause struct {
	Category            string   `json:"category"` // technical / requirements / process / communication
	RootCause           string   `json:"root_cause"`
	ContributingFactors []string `json:"contributing_factors"`
	Evidence            []string `json:"evidence"`
	Citation            string   `json:"citation"`
}

// PreventionStrategy 预防策略
type PreventionStrategy struct {
	Strategy  string `json:"strategy"`
	Rationale string `json:"rationale"`
	Effort    string `json:"effort"`   // low / medium / high
	Priority  string `json:"priority"` // low / medium / high
}

// FailureDiagnosisAnalysis 失败诊断分析结果
type FailureDiagnosisAnalysis struct {
	TaskID          string               `json:"task_id"`
	Causes          []FailureCause       `json:"causes"`
	Preventions     []PreventionStrategy `json:"preventions"`
	Interpretation  string               `json:"interpretation"`
	Recommendations []string             `json:"recommendations"`
	Input           map[string]string    `json:"input"`
}

// QuickCompletion 快速完成的任务（疑似冗余信号）
type QuickCompletion struct {
	TaskID           string  `json:"task_id"`
	DurationSeconds  float64 `json:"duration_seconds"`
	ThresholdSeconds float64 `json:"threshold_seconds"`
}

// RedundantTaskPair 冗余任务对
type RedundantTaskPair struct {
	TaskA           string  `json:"task_a"`
	TaskB           string  `json:"task_b"`
	OverlapScore    float64 `json:"overlap_score"`
	Evidence        string  `json:"evidence"`
	TimeWastedHours float64 `json:"time_wasted_hours"`
	Citation        string  `json:"citation"`
}

// RedundancyAnalysis 任务冗余分析结果（项目级）
type RedundancyAnalysis struct {
	RedundancyScore     float64             `json:"redundancy_score"` // 0-1
	RedundantPairs      []RedundantTaskPair `json:"redundant_pairs"`
	QuickCompletions    []QuickCompletion   `json:"quick_completions"`
	QuickCompletionRate float64             `json:"quick_completion_rate"`
	RecommendedTier     string              `json:"recommended_tier"`
	Interpretation      string              `json:"interpretation"`
	Recommendations     []string            `json:"recommendations"`
	Input               map[string]string   `json:"input"`
}

// RunMetadata 编排运行元数据
type RunMetadata struct {
	TasksAnalyzed     int       `json:"tasks_analyzed"`
	DecisionsAnalyzed int       `json:"decisions_analyzed"`
	ScopesRun         []string  `json:"scopes_run"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	AnalyzerErrors    []string  `json:"analyzer_errors,omitempty"`
}

// Report 一次完整编排运行的结构化报告
type Report struct {
	ProjectID          string                       `json:"project_id"`
	Scope              Scope                        `json:"scope"`
	Requirements       []RequirementAnalysis        `json:"requirements,omitempty"`
	DecisionImpacts    []DecisionImpactAnalysis     `json:"decision_impacts,omitempty"`
	InstructionQuality []InstructionQualityAnalysis `json:"instruction_quality,omitempty"`
	FailureDiagnoses   []FailureDiagnosisAnalysis   `json:"failure_diagnoses,omitempty"`
	Redundancy         *RedundancyAnalysis          `json:"redundancy,omitempty"`
	Summary            string                       `json:"summary"`
	Metadata           RunMetadata                  `json:"metadata"`
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Operation string `json:"operation"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ProgressCallback 进度回调；为 nil 时所有上报都是空操作
type ProgressCallback func(ProgressEvent)
