package analysis

import (
	"fmt"
	"strings"

	domain "github.com/hindsight/backend/internal/domain/history"
)

// 领域对象到提示词上下文的文本化
// 每条记录都带上 id 与时间戳，供模型在 citation 中回引

const noDataPlaceholder = "(none)"

// formatMessages 文本化会话转写
func formatMessages(messages []domain.Message) string {
	if len(messages) == 0 {
		return noDataPlaceholder
	}

	var b strings.Builder
	for i := range messages {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n",
			messages[i].Timestamp.Format("2006-01-02T15:04:05Z"),
			messages[i].AgentID,
			messages[i].Direction,
			messages[i].Text,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatDecisions 文本化决策列表
func formatDecisions(decisions []domain.Decision) string {
	if len(decisions) == 0 {
		return noDataPlaceholder
	}

	var b strings.Builder
	for i := range decisions {
		fmt.Fprintf(&b, "- decision %s (task %s, %s at %s): %s | why: %s | impact: %s\n",
			decisions[i].ID,
			decisions[i].TaskID,
			decisions[i].AgentID,
			decisions[i].Timestamp.Format("2006-01-02T15:04:05Z"),
			decisions[i].What,
			decisions[i].Why,
			decisions[i].Impact,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatArtifacts 文本化产物列表
func formatArtifacts(artifacts []domain.ArtifactMetadata) string {
	if len(artifacts) == 0 {
		return noDataPlaceholder
	}

	var b strings.Builder
	for i := range artifacts {
		fmt.Fprintf(&b, "- artifact %s (task %s, %s at %s): %s [%s]\n",
			artifacts[i].ID,
			artifacts[i].TaskID,
			artifacts[i].AgentID,
			artifacts[i].Timestamp.Format("2006-01-02T15:04:05Z"),
			artifacts[i].Filename,
			artifacts[i].ArtifactType,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatStringList 文本化字符串列表
func formatStringList(items []string) string {
	if len(items) == 0 {
		return noDataPlaceholder
	}
	return strings.Join(items, ", ")
}

// orPlaceholder 空字符串替换为占位符
func orPlaceholder(text string) string {
	if strings.TrimSpace(text) == "" {
		return noDataPlaceholder
	}
	return text
}
