package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	analysisdomain "github.com/hindsight/backend/internal/domain/analysis"
	applog "github.com/hindsight/backend/internal/infrastructure/log"
	"github.com/hindsight/backend/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("用法:")
		fmt.Println("  diagnose_project <项目ID>            - 对项目执行完整诊断")
		fmt.Println("  diagnose_project --list              - 列出归档中的全部项目")
		fmt.Println("  diagnose_project --history <项目ID>  - 只打印聚合后的项目历史")
		fmt.Println("  diagnose_project --index <项目ID>    - 为项目会话建立语义索引")
		fmt.Println("  diagnose_project --search <项目ID> <查询>  - 语义检索项目会话")
		fmt.Println("")
		fmt.Println("可选标志:")
		fmt.Println("  --no-cache   跳过分析缓存，强制重新调用模型")
		fmt.Println("")
		fmt.Println("示例:")
		fmt.Println("  diagnose_project proj-2026-001")
		fmt.Println("  diagnose_project proj-2026-001 --no-cache")
		os.Exit(1)
	}

	applog.Init(nil)

	app, err := wire.InitializeApp()
	if err != nil {
		fmt.Printf("❌ 初始化失败: %v\n", err)
		os.Exit(1)
	}
	if err := app.Start(); err != nil {
		fmt.Printf("❌ 启动失败: %v\n", err)
		os.Exit(1)
	}
	defer app.Stop()

	switch os.Args[1] {
	case "--list":
		listProjects(app)
		return
	case "--history":
		if len(os.Args) < 3 {
			fmt.Println("错误: 请提供项目 ID")
			os.Exit(1)
		}
		printHistory(app, os.Args[2])
		return
	case "--index":
		if len(os.Args) < 3 {
			fmt.Println("错误: 请提供项目 ID")
			os.Exit(1)
		}
		indexProject(app, os.Args[2])
		return
	case "--search":
		if len(os.Args) < 4 {
			fmt.Println("错误: 请提供项目 ID 和查询文本")
			os.Exit(1)
		}
		searchProject(app, os.Args[2], strings.Join(os.Args[3:], " "))
		return
	}

	projectID := os.Args[1]
	useCache := true
	for _, arg := range os.Args[2:] {
		if arg == "--no-cache" {
			useCache = false
		}
	}

	diagnoseProject(app, projectID, useCache)
}

// listProjects 列出归档目录中的全部项目
func listProjects(app *wire.App) {
	projects, err := app.Persistence.ListProjects()
	if err != nil {
		fmt.Printf("❌ 读取项目列表失败: %v\n", err)
		os.Exit(1)
	}
	if len(projects) == 0 {
		fmt.Println("归档中没有项目")
		return
	}

	fmt.Printf("共 %d 个项目:\n", len(projects))
	for _, projectID := range projects {
		fmt.Printf("  - %s\n", projectID)
	}
}

// printHistory 打印聚合后的项目历史
func printHistory(app *wire.App, projectID string) {
	history, err := app.Aggregator.AggregateProject(projectID, true)
	if err != nil {
		fmt.Printf("❌ 聚合失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("项目: %s (%d 任务, %d 代理, %d 决策, %d 产物)\n",
		history.ProjectID, len(history.Tasks), len(history.Agents),
		len(history.Decisions), len(history.Artifacts))
	fmt.Println(strings.Repeat("=", 80))

	printJSON(history)
}

// indexProject 为项目会话消息建立语义索引
func indexProject(app *wire.App, projectID string) {
	if app.SemanticIndex == nil {
		fmt.Println("❌ 未配置 Embedding 服务，语义索引不可用")
		os.Exit(1)
	}

	count, err := app.SemanticIndex.IndexProject(context.Background(), projectID)
	if err != nil {
		fmt.Printf("❌ 索引失败: %v\n", err)
		os.Exit(1)
	}
	if count == 0 {
		fmt.Printf("项目 %s 没有会话消息，未建立索引\n", projectID)
		return
	}
	fmt.Printf("✅ 已索引 %d 条会话消息\n", count)
}

// searchProject 语义检索项目会话
func searchProject(app *wire.App, projectID, query string) {
	if app.SemanticIndex == nil {
		fmt.Println("❌ 未配置 Embedding 服务，语义检索不可用")
		os.Exit(1)
	}

	hits, err := app.SemanticIndex.Search(context.Background(), projectID, query, 10)
	if err != nil {
		fmt.Printf("❌ 检索失败: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("没有匹配的会话消息")
		return
	}

	fmt.Printf("共 %d 条结果:\n", len(hits))
	fmt.Println(strings.Repeat("=", 80))
	for _, hit := range hits {
		fmt.Printf("[%.3f] 任务 %s / 代理 %s @ %s\n", hit.Score, hit.TaskID, hit.AgentID, hit.Timestamp)
		fmt.Printf("  %s\n", hit.Text)
	}
}

// diagnoseProject 执行完整诊断并打印报告
func diagnoseProject(app *wire.App, projectID string, useCache bool) {
	fmt.Printf("诊断项目: %s\n", projectID)
	fmt.Println(strings.Repeat("=", 80))

	callback := func(event analysisdomain.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "[%s] %d/%d %s\n",
			event.Operation, event.Current, event.Total, event.Message)
	}

	report, err := app.Orchestrator.Run(context.Background(), projectID, analysisdomain.DefaultScope(), callback, useCache)
	if err != nil {
		fmt.Printf("❌ 诊断失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ 诊断完成: %d 任务 / %d 决策, 运行了 %d 类分析\n",
		report.Metadata.TasksAnalyzed,
		report.Metadata.DecisionsAnalyzed,
		len(report.Metadata.ScopesRun))
	if len(report.Metadata.AnalyzerErrors) > 0 {
		fmt.Printf("⚠️  %d 个分析器失败:\n", len(report.Metadata.AnalyzerErrors))
		for _, msg := range report.Metadata.AnalyzerErrors {
			fmt.Printf("  - %s\n", msg)
		}
	}
	fmt.Println(strings.Repeat("=", 80))

	printJSON(report)
}

// printJSON 缩进输出 JSON
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("❌ 序列化失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
