package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/backend/internal/domain/history"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitDatabase(db))
	return NewRecordStore(db)
}

func TestRecordStore_StoreAndGet(t *testing.T) {
	store := newTestStore(t)

	record := map[string]string{"name": "认证服务重构"}
	require.NoError(t, store.Store("decisions", "dec-001", record))

	// 读取并验证内容
	raw, err := store.Get("decisions", "dec-001")
	require.NoError(t, err)
	require.NotNil(t, raw)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "认证服务重构", got["name"])
}

func TestRecordStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	// 未命中返回 (nil, nil)，不视为错误
	raw, err := store.Get("decisions", "no-such-key")
	assert.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRecordStore_StoreOverwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Store("snapshots", "proj-1", map[string]int{"version": 1}))
	require.NoError(t, store.Store("snapshots", "proj-1", map[string]int{"version": 2}))

	raw, err := store.Get("snapshots", "proj-1")
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 2, got["version"])

	count, err := store.Count("snapshots")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordStore_QueryFilterAndLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		require.NoError(t, store.Store("events", key, map[string]int{"index": i}))
	}

	even := func(raw json.RawMessage) bool {
		var rec map[string]int
		if err := json.Unmarshal(raw, &rec); err != nil {
			return false
		}
		return rec["index"]%2 == 0
	}

	results, err := store.Query("events", even, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// 无过滤、无上限时返回全部
	all, err := store.Query("events", nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestEventReader_FiltersByTaskSet(t *testing.T) {
	store := newTestStore(t)
	reader := NewEventReader(store)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []history.AgentEvent{
		{ID: "ev-2", EventType: history.EventTaskCompleted, TaskID: "task-1", AgentID: "agent-a", Timestamp: base.Add(2 * time.Hour)},
		{ID: "ev-1", EventType: history.EventTaskStarted, TaskID: "task-1", AgentID: "agent-a", Timestamp: base},
		{ID: "ev-3", EventType: history.EventTaskStarted, TaskID: "task-9", AgentID: "agent-b", Timestamp: base.Add(time.Hour)},
	}
	for i := range events {
		require.NoError(t, reader.StoreEvent(&events[i]))
	}

	got, err := reader.ReadEventsForTasks(map[string]bool{"task-1": true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// 任务集合外的事件被过滤，结果按时间升序
	assert.Equal(t, "ev-1", got[0].ID)
	assert.Equal(t, "ev-2", got[1].ID)
}

func TestEventReader_EmptyTaskSet(t *testing.T) {
	store := newTestStore(t)
	reader := NewEventReader(store)

	require.NoError(t, reader.StoreEvent(&history.AgentEvent{ID: "ev-1", TaskID: "task-1"}))

	// 空任务集合直接返回空，不扫描存储
	got, err := reader.ReadEventsForTasks(nil)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestOutcomeReader_OutcomesAndProfiles(t *testing.T) {
	store := newTestStore(t)
	reader := NewOutcomeReader(store)

	require.NoError(t, reader.StoreOutcome(&history.TaskOutcome{
		TaskID: "task-1", TaskName: "实现登录接口", Status: history.TaskStatusCompleted, ActualHours: 3.5,
	}))
	require.NoError(t, reader.StoreOutcome(&history.TaskOutcome{
		TaskID: "task-2", TaskName: "编写部署脚本", Status: history.TaskStatusFailed,
	}))
	require.NoError(t, reader.StoreProfile(&history.AgentProfile{
		AgentID: "agent-a", TasksCompleted: 5, SuccessRate: 0.8,
	}))

	outcomes, err := reader.ReadOutcomesForTasks(map[string]bool{"task-1": true})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "task-1", outcomes[0].TaskID)

	profiles, err := reader.ReadProfilesForAgents(map[string]bool{"agent-a": true, "agent-z": true})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 5, profiles[0].TasksCompleted)
}

func TestOutcomeReader_RejectsEmptyKey(t *testing.T) {
	store := newTestStore(t)
	reader := NewOutcomeReader(store)

	assert.Error(t, reader.StoreOutcome(&history.TaskOutcome{TaskName: "缺少任务 ID"}))
	assert.Error(t, reader.StoreProfile(&history.AgentProfile{}))
}
