// Package tokenizer 提供提示词的 Token 数量估算
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// 在包初始化时设置离线加载器
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Estimator Token 数量估算器
// tiktoken 初始化失败时回退到字符数估算（约 4 字符一个 Token）
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// 单例实例，避免重复加载编码文件
var (
	estimatorInstance *Estimator
	estimatorOnce     sync.Once
)

// NewEstimator 获取 Estimator 单例
func NewEstimator() *Estimator {
	estimatorOnce.Do(func() {
		estimatorInstance = &Estimator{}

		// 使用 cl100k_base 编码（GPT-4、Claude 等模型兼容）
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			estimatorInstance.encoding = enc
		}
	})
	return estimatorInstance
}

// CountTokens 计算文本的 Token 数量
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.encoding == nil {
		return charFallbackCount(text)
	}

	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens)
}

// CountTokensBatch 批量计算多个文本的 Token 数量
func (e *Estimator) CountTokensBatch(texts []string) int {
	total := 0
	for _, text := range texts {
		total += e.CountTokens(text)
	}
	return total
}

// Method 返回计算方法标识
func (e *Estimator) Method() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.encoding == nil {
		return "char_estimate"
	}
	return "tiktoken"
}

// charFallbackCount 字符估算回退
func charFallbackCount(text string) int {
	count := len([]rune(text)) / 4
	if count == 0 {
		count = 1
	}
	return count
}
