package wire

import (
	"database/sql"
	"fmt"
	"log/slog"

	appanalysis "github.com/hindsight/backend/internal/application/analysis"
	apphistory "github.com/hindsight/backend/internal/application/history"
	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/embedding"
	applog "github.com/hindsight/backend/internal/infrastructure/log"
	"github.com/hindsight/backend/internal/infrastructure/store"
	"github.com/hindsight/backend/internal/infrastructure/vector"
	"github.com/hindsight/backend/internal/infrastructure/watcher"

	"github.com/hindsight/backend/internal/domain/events"
)

// App 应用主结构，组合所有服务
type App struct {
	Orchestrator  *appanalysis.Orchestrator
	Aggregator    *apphistory.AggregatorService
	Persistence   *apphistory.PersistenceService
	SemanticIndex *apphistory.SemanticIndexService // 未配置 Embedding 时为 nil

	eventBus    events.EventBus
	logWatcher  *watcher.LogWatcher
	dataLock    *store.DataLock
	unsubscribe func()
	db          *sql.DB
	logger      *slog.Logger
}

// NewApp 创建应用实例
func NewApp(
	orchestrator *appanalysis.Orchestrator,
	aggregator *apphistory.AggregatorService,
	persistence *apphistory.PersistenceService,
	semanticIndex *apphistory.SemanticIndexService,
	eventBus events.EventBus,
	logWatcher *watcher.LogWatcher,
	dataLock *store.DataLock,
	db *sql.DB,
) *App {
	return &App{
		Orchestrator:  orchestrator,
		Aggregator:    aggregator,
		Persistence:   persistence,
		SemanticIndex: semanticIndex,
		eventBus:      eventBus,
		logWatcher:    logWatcher,
		dataLock:      dataLock,
		db:            db,
		logger:        applog.NewModuleLogger("app", "main"),
	}
}

// Start 获取数据目录锁，启动会话日志监听并接通缓存失效订阅
// 监听启动失败只降级为纯 TTL 失效，不阻止应用运行；拿不到锁则是致命错误
func (a *App) Start() error {
	a.logger.Info("启动 Hindsight 后端")

	if a.dataLock != nil {
		if err := a.dataLock.Acquire(); err != nil {
			return err
		}
	}

	if a.eventBus != nil {
		a.unsubscribe = a.Aggregator.SubscribeLogEvents(a.eventBus)
	}

	if a.logWatcher != nil {
		if err := a.logWatcher.Start(); err != nil {
			a.logger.Error("会话日志监听启动失败，缓存退化为纯 TTL 失效", "error", err)
		}
	}

	a.logger.Info("Hindsight 后端启动完成")
	return nil
}

// Stop 停止所有后台组件并释放资源
func (a *App) Stop() {
	a.logger.Info("停止 Hindsight 后端")

	if a.logWatcher != nil {
		a.logWatcher.Stop()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.eventBus != nil {
		a.eventBus.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("关闭数据库失败", "error", err)
		}
	}
	if a.dataLock != nil {
		a.dataLock.Release()
	}
}

// ProvideSemanticIndex 组装可选的语义索引服务
// 未配置 Embedding 服务时返回 nil，不建立 Qdrant 连接
func ProvideSemanticIndex(
	cfg *config.EmbeddingConfig,
	conversations domain.ConversationSource,
	embedder *embedding.Client,
) (*apphistory.SemanticIndexService, error) {
	if embedder == nil || !embedder.Enabled() {
		return nil, nil
	}

	store, err := vector.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("semantic index: %w", err)
	}
	return apphistory.NewSemanticIndexService(conversations, embedder, store), nil
}
