package tokenizer

import "github.com/google/wire"

// ProviderSet tokenizer 包的依赖注入配置
var ProviderSet = wire.NewSet(NewEstimator)
