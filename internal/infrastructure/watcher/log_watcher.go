package watcher

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hindsight/backend/internal/domain/events"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// LogWatcher 会话日志目录监听器
// 将文件系统事件（带防抖）转换为 ConversationLogEvent 发布到事件总线
type LogWatcher struct {
	logDir   string
	debounce time.Duration
	enabled  bool

	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLogWatcher 创建会话日志监听器
func NewLogWatcher(storageCfg *config.StorageConfig, watcherCfg *config.WatcherConfig, eventBus events.EventBus) (*LogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &LogWatcher{
		logDir:         storageCfg.ConversationLogDir,
		debounce:       time.Duration(watcherCfg.DebounceMs) * time.Millisecond,
		enabled:        watcherCfg.Enabled,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "log_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start 启动监听
func (w *LogWatcher) Start() error {
	if !w.enabled {
		w.logger.Info("Log watcher disabled by configuration")
		return nil
	}

	// 日志目录可能尚不存在，先创建再监听
	if err := os.MkdirAll(w.logDir, 0755); err != nil {
		return err
	}

	if err := w.watcher.Add(w.logDir); err != nil {
		return err
	}

	w.logger.Info("Starting conversation log watcher",
		"log_dir", w.logDir,
		"debounce", w.debounce,
	)

	w.wg.Add(1)
	go w.watchLoop()

	return nil
}

// Stop 停止监听
func (w *LogWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	// 取消所有防抖定时器
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceMu.Unlock()

	w.logger.Info("Conversation log watcher stopped")
}

// watchLoop 事件监听循环
func (w *LogWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件（带防抖）
func (w *LogWatcher) handleFsEvent(fsEvent fsnotify.Event) {
	if !isConversationLogFile(fsEvent.Name) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	// 取消之前的定时器
	if timer, exists := w.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	// 创建新的防抖定时器
	w.debounceTimers[fsEvent.Name] = time.AfterFunc(w.debounce, func() {
		w.emitLogEvent(fsEvent)

		// 清理定时器
		w.debounceMu.Lock()
		delete(w.debounceTimers, fsEvent.Name)
		w.debounceMu.Unlock()
	})
}

// emitLogEvent 发送会话日志事件
func (w *LogWatcher) emitLogEvent(fsEvent fsnotify.Event) {
	var eventType events.EventType
	switch {
	case fsEvent.Has(fsnotify.Create):
		eventType = events.ConversationLogCreated
	case fsEvent.Has(fsnotify.Write):
		eventType = events.ConversationLogModified
	case fsEvent.Has(fsnotify.Remove), fsEvent.Has(fsnotify.Rename):
		eventType = events.ConversationLogDeleted
	default:
		return
	}

	var modTime time.Time
	if fileInfo, err := os.Stat(fsEvent.Name); err == nil {
		modTime = fileInfo.ModTime()
	}

	w.eventBus.Publish(&events.ConversationLogEvent{
		EventType: eventType,
		FilePath:  fsEvent.Name,
		ModTime:   modTime,
		EventTime: time.Now(),
	})

	w.logger.Debug("Conversation log event emitted",
		"type", eventType,
		"file", fsEvent.Name,
	)
}

// isConversationLogFile 判断是否为会话日志文件
func isConversationLogFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl") ||
		strings.HasSuffix(path, ".ndjson") ||
		strings.HasSuffix(path, ".log")
}
