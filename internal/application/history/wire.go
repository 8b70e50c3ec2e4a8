package history

import "github.com/google/wire"

// ProviderSet history 应用服务的依赖注入配置
var ProviderSet = wire.NewSet(
	NewPersistenceService,
	NewAggregatorService,
)
