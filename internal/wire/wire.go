//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	appanalysis "github.com/hindsight/backend/internal/application/analysis"
	apphistory "github.com/hindsight/backend/internal/application/history"
	"github.com/hindsight/backend/internal/infrastructure/archive"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/convlog"
	"github.com/hindsight/backend/internal/infrastructure/embedding"
	"github.com/hindsight/backend/internal/infrastructure/llm"
	"github.com/hindsight/backend/internal/infrastructure/store"
	"github.com/hindsight/backend/internal/infrastructure/tokenizer"
	"github.com/hindsight/backend/internal/infrastructure/watcher"
)

// InitializeApp 组装完整应用
func InitializeApp() (*App, error) {
	wire.Build(
		config.ProviderSet,
		store.ProviderSet,
		archive.ProviderSet,
		convlog.ProviderSet,
		llm.ProviderSet,
		embedding.ProviderSet,
		tokenizer.ProviderSet,
		watcher.ProviderSet,
		apphistory.ProviderSet,
		appanalysis.ProviderSet,
		ProvideSemanticIndex,
		NewApp,
	)
	return nil, nil
}
