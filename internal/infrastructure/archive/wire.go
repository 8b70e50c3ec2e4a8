package archive

import "github.com/google/wire"

// ProviderSet archive 包的依赖注入配置
var ProviderSet = wire.NewSet(NewDocumentStore)
