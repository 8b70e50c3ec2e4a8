package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hindsight/backend/internal/domain/analysis"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
	"github.com/hindsight/backend/internal/infrastructure/tokenizer"
)

// 引擎默认参数
const (
	// DefaultMaxTokens 响应 Token 上限默认值
	DefaultMaxTokens = 4000
	// DefaultTemperature 采样温度默认值
	DefaultTemperature = 0.3
	// maxPromptTokens 提示词 Token 预算，超出时截断过长的上下文值
	maxPromptTokens = 12000
	// projectLevelTaskKey 项目级分析在缓存键中的任务段
	projectLevelTaskKey = "project-level"
)

// Engine 通用 LLM 分析原语
// 组装带引用要求的提示词、调用 Provider、防御性解析输出，
// 并按内容哈希在进程生命周期内记忆化响应
type Engine struct {
	provider  analysis.Provider
	estimator *tokenizer.Estimator

	maxTokens   int
	temperature float64

	cacheMu sync.RWMutex
	cache   map[string]*analysis.AnalysisResponse

	logger *slog.Logger
}

// NewEngine 创建分析引擎
func NewEngine(provider analysis.Provider, estimator *tokenizer.Estimator, cfg *config.LLMConfig) *Engine {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	return &Engine{
		provider:    provider,
		estimator:   estimator,
		maxTokens:   maxTokens,
		temperature: temperature,
		cache:       make(map[string]*analysis.AnalysisResponse),
		logger:      log.NewModuleLogger("analysis", "engine"),
	}
}

// Analyze 执行一次 LLM 分析
// useCache 为 true 时，相同请求直接返回缓存响应，不再调用 Provider
func (e *Engine) Analyze(ctx context.Context, request *analysis.AnalysisRequest, callback analysis.ProgressCallback, useCache bool) (*analysis.AnalysisResponse, error) {
	guard := BeginOperation(callback, string(request.Type), 4)
	defer guard.Release()

	cacheKey := e.cacheKey(request)

	if useCache {
		if cached := e.cachedResponse(cacheKey); cached != nil {
			e.logger.Debug("命中分析缓存",
				"type", request.Type,
				"project_id", request.ProjectID,
				"task_id", request.TaskID,
			)
			return cached, nil
		}
	}

	contextData := e.budgetContext(request.ContextData)
	prompt := assemblePrompt(request.Type, request.PromptTemplate, contextData)
	guard.Update(1, "prompt built")

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.maxTokens
	}
	temperature := request.Temperature
	if temperature <= 0 {
		temperature = e.temperature
	}

	rawText, err := e.provider.Complete(ctx, prompt, maxTokens, temperature)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", request.Type, err)
	}
	guard.Update(2, "provider called")

	// 解析失败不是致命错误：包装原始输出返回，调用方总能拿到结果
	parsed, parseErr := parseProviderJSON(rawText)
	if parseErr != nil {
		e.logger.Warn("模型输出无法解析为 JSON，返回降级包装",
			"type", request.Type,
			"error", parseErr,
		)
		parsed = map[string]interface{}{
			"raw_output":  rawText,
			"parse_error": parseErr.Error(),
		}
	}
	guard.Update(3, "response parsed")

	response := &analysis.AnalysisResponse{
		RawText:    rawText,
		Parsed:     parsed,
		Confidence: floatField(parsed, "confidence", 0),
		Timestamp:  time.Now().UTC(),
	}

	e.cacheMu.Lock()
	e.cache[cacheKey] = response
	e.cacheMu.Unlock()

	return response, nil
}

// cachedResponse 读取缓存，命中时返回带 FromCache 标记的副本
func (e *Engine) cachedResponse(key string) *analysis.AnalysisResponse {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	cached, ok := e.cache[key]
	if !ok {
		return nil
	}

	copied := *cached
	copied.FromCache = true
	return &copied
}

// cacheKey 确定性缓存键
// 覆盖 (类型, 项目, 任务或 project-level, 键排序后的上下文 JSON, 模板)
func (e *Engine) cacheKey(request *analysis.AnalysisRequest) string {
	taskKey := request.TaskID
	if taskKey == "" {
		taskKey = projectLevelTaskKey
	}

	keys := make([]string, 0, len(request.ContextData))
	for k := range request.ContextData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sortedContext := make(map[string]string, len(keys))
	for _, k := range keys {
		sortedContext[k] = request.ContextData[k]
	}
	contextJSON, _ := json.Marshal(sortedContext)

	h := sha256.New()
	h.Write([]byte(string(request.Type)))
	h.Write([]byte{0})
	h.Write([]byte(request.ProjectID))
	h.Write([]byte{0})
	h.Write([]byte(taskKey))
	h.Write([]byte{0})
	h.Write(contextJSON)
	h.Write([]byte{0})
	h.Write([]byte(request.PromptTemplate))
	return hex.EncodeToString(h.Sum(nil))
}

// budgetContext 控制提示词的 Token 预算
// 超预算时反复截断当前最长的上下文值尾部，直到满足预算
func (e *Engine) budgetContext(contextData map[string]string) map[string]string {
	budgeted := make(map[string]string, len(contextData))
	for k, v := range contextData {
		budgeted[k] = v
	}

	for e.contextTokens(budgeted) > maxPromptTokens {
		longestKey := ""
		longestLen := 0
		for k, v := range budgeted {
			if len(v) > longestLen {
				longestKey = k
				longestLen = len(v)
			}
		}
		// 最长值已无可截断空间，放弃继续压缩
		if longestLen < 200 {
			break
		}

		runes := []rune(budgeted[longestKey])
		budgeted[longestKey] = string(runes[:len(runes)/2]) + "\n...[truncated]"
		e.logger.Debug("上下文超出 Token 预算，截断最长字段", "key", longestKey)
	}

	return budgeted
}

// contextTokens 估算上下文的 Token 总量
func (e *Engine) contextTokens(contextData map[string]string) int {
	total := 0
	for _, v := range contextData {
		total += e.estimator.CountTokens(v)
	}
	return total
}
