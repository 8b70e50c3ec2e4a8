package watcher

import "github.com/google/wire"

// ProviderSet watcher 包的依赖注入配置
var ProviderSet = wire.NewSet(
	NewEventBus,
	NewLogWatcher,
)
