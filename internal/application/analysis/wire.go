package analysis

import (
	"github.com/google/wire"

	apphistory "github.com/hindsight/backend/internal/application/history"
)

// ProviderSet 分析管线的依赖注入集合
var ProviderSet = wire.NewSet(
	NewEngine,
	NewRequirementAnalyzer,
	NewDecisionImpactAnalyzer,
	NewInstructionQualityAnalyzer,
	NewFailureDiagnosisAnalyzer,
	NewRedundancyAnalyzer,
	NewOrchestrator,
	wire.Bind(new(ProjectAggregator), new(*apphistory.AggregatorService)),
)
