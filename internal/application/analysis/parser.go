package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hindsight/backend/internal/infrastructure/log"
)

// parseProviderJSON 防御性解析模型输出
// 依次尝试：剥离代码围栏 → 直接解析 → 首尾花括号截取 →
// 流式解码首个对象（忽略尾随散文）。全部失败才返回错误
func parseProviderJSON(raw string) (map[string]interface{}, error) {
	text := stripCodeFences(strings.TrimSpace(raw))

	// 直接解析
	if strings.HasPrefix(text, "{") {
		var result map[string]interface{}
		if err := json.Unmarshal([]byte(text), &result); err == nil {
			return result, nil
		}
	}

	// 截取第一个 { 到最后一个 } 之间的子串
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		var result map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	// 流式解码首个完整对象，容忍尾随散文
	if start >= 0 {
		decoder := json.NewDecoder(strings.NewReader(text[start:]))
		var result map[string]interface{}
		if err := decoder.Decode(&result); err == nil {
			if trailing := remainingText(decoder, text[start:]); trailing != "" {
				logger := log.NewModuleLogger("analysis", "parser")
				logger.Debug("模型输出含尾随文本，已忽略", "trailing_preview", preview(trailing, 80))
			}
			return result, nil
		}
	}

	return nil, fmt.Errorf("no JSON object could be recovered from provider output")
}

// stripCodeFences 剥离包裹输出的 markdown 代码围栏
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	// 去掉起始围栏行（可能带语言标记，如 ```json）
	lines = lines[1:]

	// 去掉结尾围栏行
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			lines = lines[:i]
		}
		break
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// remainingText 流式解码后剩余的未消费文本
func remainingText(decoder *json.Decoder, input string) string {
	offset := decoder.InputOffset()
	if offset < 0 || int(offset) >= len(input) {
		return ""
	}
	return strings.TrimSpace(input[offset:])
}

// preview 截断文本用于日志
func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
