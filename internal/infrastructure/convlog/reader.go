// Package convlog 读取多代理协作的会话日志
// 日志为逐行 JSON（NDJSON），一行一条记录；metadata 中的
// (project_id, task_id) 是任务到项目归属的唯一权威来源
package convlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// 会话类型到消息方向的映射
const (
	conversationTypeToPM   = "worker_to_pm"
	conversationTypeFromPM = "pm_to_worker"
)

// logLine 会话日志中的单行原始记录
type logLine struct {
	Timestamp        string                 `json:"timestamp"`
	ConversationType string                 `json:"conversation_type"`
	WorkerID         string                 `json:"worker_id"`
	Message          string                 `json:"message"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// LogReader 会话日志读取器，实现 history.ConversationSource
type LogReader struct {
	logDir string
	logger *slog.Logger
}

// NewLogReader 创建会话日志读取器
func NewLogReader(cfg *config.StorageConfig) *LogReader {
	return &LogReader{
		logDir: cfg.ConversationLogDir,
		logger: log.NewModuleLogger("infra", "convlog"),
	}
}

// ReadAllMessages 读取全部会话消息（跨项目，按时间升序）
func (r *LogReader) ReadAllMessages() ([]history.Message, error) {
	return r.readMessages(func(*history.Message) bool { return true })
}

// ReadProjectMessages 读取某项目的全部消息
// 过滤依据是消息元数据中的 project_id
func (r *LogReader) ReadProjectMessages(projectID string) ([]history.Message, error) {
	return r.readMessages(func(m *history.Message) bool {
		return m.ProjectID() == projectID
	})
}

// ProjectTaskIDs 从会话元数据推导项目的权威任务集合
func (r *LogReader) ProjectTaskIDs(projectID string) (map[string]bool, error) {
	messages, err := r.ReadProjectMessages(projectID)
	if err != nil {
		return nil, err
	}

	taskIDs := make(map[string]bool)
	for i := range messages {
		if taskID := messages[i].TaskID(); taskID != "" {
			taskIDs[taskID] = true
		}
	}
	return taskIDs, nil
}

// readMessages 扫描日志目录下的全部日志文件并应用过滤
func (r *LogReader) readMessages(keep func(*history.Message) bool) ([]history.Message, error) {
	files, err := r.logFiles()
	if err != nil {
		return nil, err
	}

	var messages []history.Message
	for _, file := range files {
		fileMessages, err := r.readLogFile(file, keep)
		if err != nil {
			return nil, fmt.Errorf("failed to read conversation log %s: %w", filepath.Base(file), err)
		}
		messages = append(messages, fileMessages...)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return messages, nil
}

// logFiles 日志目录下的日志文件列表；目录不存在视为无数据
func (r *LogReader) logFiles() ([]string, error) {
	entries, err := os.ReadDir(r.logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation log directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".ndjson") || strings.HasSuffix(name, ".log") {
			files = append(files, filepath.Join(r.logDir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

// readLogFile 逐行解析单个日志文件
// 无法解析的行跳过并记 debug 日志，不中断整个读取
func (r *LogReader) readLogFile(path string, keep func(*history.Message) bool) ([]history.Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var messages []history.Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw logLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			r.logger.Debug("跳过无法解析的日志行", "file", filepath.Base(path), "line", lineNo, "error", err)
			continue
		}

		message, err := raw.toMessage()
		if err != nil {
			r.logger.Debug("跳过字段异常的日志行", "file", filepath.Base(path), "line", lineNo, "error", err)
			continue
		}

		if keep(&message) {
			messages = append(messages, message)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// toMessage 将原始日志行归一化为领域消息
// 时间戳统一转为 UTC
func (l *logLine) toMessage() (history.Message, error) {
	ts, err := parseTimestamp(l.Timestamp)
	if err != nil {
		return history.Message{}, err
	}

	direction := history.DirectionToPM
	if l.ConversationType == conversationTypeFromPM {
		direction = history.DirectionFromPM
	}

	return history.Message{
		Timestamp: ts.UTC(),
		Direction: direction,
		AgentID:   l.WorkerID,
		Text:      l.Message,
		Metadata:  l.Metadata,
	}, nil
}

// parseTimestamp 解析 ISO-8601 时间戳，兼容无时区后缀的写法
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", value)
}
