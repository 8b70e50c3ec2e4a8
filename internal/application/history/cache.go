package history

import (
	"sync"
	"time"

	domain "github.com/hindsight/backend/internal/domain/history"
)

// historyCache 项目历史的内存缓存，按项目 ID 缓存，TTL 过期
// clock 可注入，测试中用假时钟验证过期行为
type historyCache struct {
	ttl     time.Duration
	clock   func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value    *domain.ProjectHistory
	cachedAt time.Time
}

// newHistoryCache 创建缓存
func newHistoryCache(ttl time.Duration, clock func() time.Time) *historyCache {
	if clock == nil {
		clock = time.Now
	}
	return &historyCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// get 读取缓存；过期或不存在返回 nil
func (c *historyCache) get(projectID string) *domain.ProjectHistory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[projectID]
	if !ok {
		return nil
	}
	if c.clock().Sub(entry.cachedAt) > c.ttl {
		return nil
	}
	return entry.value
}

// put 写入缓存
func (c *historyCache) put(projectID string, value *domain.ProjectHistory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[projectID] = cacheEntry{
		value:    value,
		cachedAt: c.clock(),
	}
}

// invalidate 移除单个项目的缓存
func (c *historyCache) invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, projectID)
}

// invalidateAll 清空缓存
func (c *historyCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
