package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
const (
	// ProjectContextID 项目 ID
	ProjectContextID = "project_id"

	// TaskContextID 任务 ID
	TaskContextID = "task_id"

	// AgentContextID 代理 ID
	AgentContextID = "agent_id"

	// AnalysisContextID 分析运行 ID
	AnalysisContextID = "analysis_id"
)

// WithProjectID 在上下文中添加项目 ID
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, ProjectContextID, projectID)
}

// WithTaskID 在上下文中添加任务 ID
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, TaskContextID, taskID)
}

// WithAgentID 在上下文中添加代理 ID
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentContextID, agentID)
}

// WithAnalysisID 在上下文中添加分析运行 ID
func WithAnalysisID(ctx context.Context, analysisID string) context.Context {
	return context.WithValue(ctx, AnalysisContextID, analysisID)
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if projectID := ctx.Value(ProjectContextID); projectID != nil {
		attrs = append(attrs, slog.String("project_id", projectID.(string)))
	}
	if taskID := ctx.Value(TaskContextID); taskID != nil {
		attrs = append(attrs, slog.String("task_id", taskID.(string)))
	}
	if agentID := ctx.Value(AgentContextID); agentID != nil {
		attrs = append(attrs, slog.String("agent_id", agentID.(string)))
	}
	if analysisID := ctx.Value(AnalysisContextID); analysisID != nil {
		attrs = append(attrs, slog.String("analysis_id", analysisID.(string)))
	}

	return attrs
}
