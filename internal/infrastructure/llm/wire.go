package llm

import (
	"github.com/google/wire"

	"github.com/hindsight/backend/internal/domain/analysis"
)

// ProviderSet llm 包的依赖注入配置
var ProviderSet = wire.NewSet(
	NewClient,
	wire.Bind(new(analysis.Provider), new(*Client)),
)
