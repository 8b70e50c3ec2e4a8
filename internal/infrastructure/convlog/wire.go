package convlog

import (
	"github.com/google/wire"

	"github.com/hindsight/backend/internal/domain/history"
)

// ProviderSet convlog 包的依赖注入配置
var ProviderSet = wire.NewSet(
	NewLogReader,
	wire.Bind(new(history.ConversationSource), new(*LogReader)),
)
