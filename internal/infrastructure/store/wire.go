package store

import (
	"github.com/google/wire"

	"github.com/hindsight/backend/internal/domain/history"
)

// ProviderSet store 包的依赖注入配置
var ProviderSet = wire.NewSet(
	ProvideDB,
	NewDataLock,
	NewRecordStore,
	NewEventReader,
	NewOutcomeReader,
	wire.Bind(new(history.EventSource), new(*EventReader)),
	wire.Bind(new(history.OutcomeSource), new(*OutcomeReader)),
)
