package embedding

import "github.com/google/wire"

// ProviderSet embedding 包的依赖注入配置
var ProviderSet = wire.NewSet(NewClient)
