package convlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
)

func newTestReader(t *testing.T, files map[string]string) *LogReader {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	return NewLogReader(&config.StorageConfig{ConversationLogDir: dir})
}

func TestLogReader_ReadProjectMessages(t *testing.T) {
	reader := newTestReader(t, map[string]string{
		"agent-a.jsonl": `{"timestamp":"2025-03-01T10:00:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"登录接口已完成","metadata":{"project_id":"proj-1","task_id":"task-1"}}
{"timestamp":"2025-03-01T09:00:00Z","conversation_type":"pm_to_worker","worker_id":"agent-a","message":"请实现登录接口","metadata":{"project_id":"proj-1","task_id":"task-1","instructions":"实现 JWT 登录接口"}}
{"timestamp":"2025-03-01T11:00:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"其他项目的消息","metadata":{"project_id":"proj-2","task_id":"task-9"}}`,
	})

	messages, err := reader.ReadProjectMessages("proj-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// 结果按时间升序，方向映射正确
	assert.Equal(t, history.DirectionFromPM, messages[0].Direction)
	assert.Equal(t, "实现 JWT 登录接口", messages[0].Instructions())
	assert.Equal(t, history.DirectionToPM, messages[1].Direction)
	assert.Equal(t, "task-1", messages[1].TaskID())
}

func TestLogReader_SkipsMalformedLines(t *testing.T) {
	reader := newTestReader(t, map[string]string{
		"mixed.jsonl": `not valid json at all
{"timestamp":"2025-03-01T10:00:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"正常记录","metadata":{"project_id":"proj-1"}}
{"timestamp":"","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"缺少时间戳","metadata":{"project_id":"proj-1"}}

{"timestamp":"2025-03-01T12:00:00+08:00","conversation_type":"worker_to_pm","worker_id":"agent-b","message":"带时区的记录","metadata":{"project_id":"proj-1"}}`,
	})

	messages, err := reader.ReadProjectMessages("proj-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// 时间戳统一归一化为 UTC，+08:00 的记录归一化后排在最前
	assert.Equal(t, time.UTC, messages[0].Timestamp.Location())
	assert.Equal(t, 4, messages[0].Timestamp.Hour())
}

func TestLogReader_ProjectTaskIDs(t *testing.T) {
	reader := newTestReader(t, map[string]string{
		"a.jsonl": `{"timestamp":"2025-03-01T10:00:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"m1","metadata":{"project_id":"proj-1","task_id":"task-1"}}
{"timestamp":"2025-03-01T10:01:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"m2","metadata":{"project_id":"proj-1","task_id":"task-2"}}
{"timestamp":"2025-03-01T10:02:00Z","conversation_type":"worker_to_pm","worker_id":"agent-a","message":"无任务关联","metadata":{"project_id":"proj-1"}}
{"timestamp":"2025-03-01T10:03:00Z","conversation_type":"worker_to_pm","worker_id":"agent-b","message":"m3","metadata":{"project_id":"proj-2","task_id":"task-3"}}`,
	})

	taskIDs, err := reader.ProjectTaskIDs("proj-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task-1": true, "task-2": true}, taskIDs)
}

func TestLogReader_MissingDirectory(t *testing.T) {
	reader := NewLogReader(&config.StorageConfig{
		ConversationLogDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})

	// 日志目录不存在视为无数据
	messages, err := reader.ReadAllMessages()
	assert.NoError(t, err)
	assert.Empty(t, messages)

	taskIDs, err := reader.ProjectTaskIDs("proj-1")
	assert.NoError(t, err)
	assert.Empty(t, taskIDs)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"RFC3339", "2025-03-01T10:00:00Z", false},
		{"带毫秒", "2025-03-01T10:00:00.123Z", false},
		{"无时区后缀", "2025-03-01T10:00:00", false},
		{"空字符串", "", true},
		{"非时间文本", "yesterday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
