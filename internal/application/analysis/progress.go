// Package analysis 实现 LLM 分析引擎、分析器集合与编排器
package analysis

import (
	"sync"

	"github.com/hindsight/backend/internal/domain/analysis"
)

// OperationGuard 单个长操作的进度守卫
// BeginOperation 发出 current=0；Release 无论正常返回还是异常路径
// 都会发出 current=total 的完成事件（应由 defer 调用）
type OperationGuard struct {
	callback  analysis.ProgressCallback
	operation string
	total     int

	mu       sync.Mutex
	current  int
	released bool
}

// BeginOperation 进入一个长操作并发出起始事件
// callback 为 nil 时所有上报都是空操作
func BeginOperation(callback analysis.ProgressCallback, operation string, total int) *OperationGuard {
	guard := &OperationGuard{
		callback:  callback,
		operation: operation,
		total:     total,
	}
	guard.emit(0, "")
	return guard
}

// Update 上报中间进度
func (g *OperationGuard) Update(current int, message string) {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.current = current
	g.mu.Unlock()

	g.emit(current, message)
}

// Advance 上报进度前移一步
func (g *OperationGuard) Advance(message string) {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.current++
	current := g.current
	g.mu.Unlock()

	g.emit(current, message)
}

// Release 离开操作，总是发出 current=total 的完成事件（幂等）
func (g *OperationGuard) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	g.mu.Unlock()

	g.emit(g.total, "")
}

// emit 发出事件
func (g *OperationGuard) emit(current int, message string) {
	if g.callback == nil {
		return
	}
	g.callback(analysis.ProgressEvent{
		Operation: g.operation,
		Current:   current,
		Total:     g.total,
		Message:   message,
	})
}
