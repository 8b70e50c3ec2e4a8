package analysis

import "context"

// Provider LLM 补全服务的边界接口
// 实现方负责传输与鉴权；提示词组装与解析在引擎侧完成
type Provider interface {
	// Complete 提交提示词并返回模型原始文本
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}
