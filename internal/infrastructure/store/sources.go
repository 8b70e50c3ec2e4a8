package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// 记录存储中的 collection 名称
const (
	CollectionAgentEvents   = "agent_events"
	CollectionTaskOutcomes  = "task_outcomes"
	CollectionAgentProfiles = "agent_profiles"
)

// EventReader 基于记录存储的事件读取器
// 实现 history.EventSource；事件与项目的关联只能经由任务集合
type EventReader struct {
	store  *RecordStore
	logger *slog.Logger
}

// NewEventReader 创建事件读取器
func NewEventReader(store *RecordStore) *EventReader {
	return &EventReader{
		store:  store,
		logger: log.NewModuleLogger("store", "events"),
	}
}

// StoreEvent 写入一条代理事件
func (r *EventReader) StoreEvent(event *history.AgentEvent) error {
	if event.ID == "" {
		return fmt.Errorf("agent event id is required")
	}
	return r.store.Store(CollectionAgentEvents, event.ID, event)
}

// ReadEventsForTasks 读取任务集合内的代理事件（按时间升序）
func (r *EventReader) ReadEventsForTasks(taskIDs map[string]bool) ([]history.AgentEvent, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	records, err := r.store.Query(CollectionAgentEvents, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent events: %w", err)
	}

	var events []history.AgentEvent
	for _, raw := range records {
		var event history.AgentEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			r.logger.Debug("跳过无法解析的事件记录", "error", err)
			continue
		}
		if !taskIDs[event.TaskID] {
			continue
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

// OutcomeReader 基于记录存储的结果/档案读取器
// 实现 history.OutcomeSource
type OutcomeReader struct {
	store  *RecordStore
	logger *slog.Logger
}

// NewOutcomeReader 创建结果读取器
func NewOutcomeReader(store *RecordStore) *OutcomeReader {
	return &OutcomeReader{
		store:  store,
		logger: log.NewModuleLogger("store", "outcomes"),
	}
}

// StoreOutcome 写入一条任务结果（同一任务覆盖写）
func (r *OutcomeReader) StoreOutcome(outcome *history.TaskOutcome) error {
	if outcome.TaskID == "" {
		return fmt.Errorf("task outcome task_id is required")
	}
	return r.store.Store(CollectionTaskOutcomes, outcome.TaskID, outcome)
}

// StoreProfile 写入代理绩效档案（整体覆盖）
func (r *OutcomeReader) StoreProfile(profile *history.AgentProfile) error {
	if profile.AgentID == "" {
		return fmt.Errorf("agent profile agent_id is required")
	}
	return r.store.Store(CollectionAgentProfiles, profile.AgentID, profile)
}

// ReadOutcomesForTasks 读取任务集合内的任务结果
// 结果记录不携带项目 ID，集合过滤是唯一的归属依据
func (r *OutcomeReader) ReadOutcomesForTasks(taskIDs map[string]bool) ([]history.TaskOutcome, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	records, err := r.store.Query(CollectionTaskOutcomes, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read task outcomes: %w", err)
	}

	var outcomes []history.TaskOutcome
	for _, raw := range records {
		var outcome history.TaskOutcome
		if err := json.Unmarshal(raw, &outcome); err != nil {
			r.logger.Debug("跳过无法解析的结果记录", "error", err)
			continue
		}
		if !taskIDs[outcome.TaskID] {
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// ReadProfilesForAgents 读取代理集合的长期绩效档案
func (r *OutcomeReader) ReadProfilesForAgents(agentIDs map[string]bool) ([]history.AgentProfile, error) {
	if len(agentIDs) == 0 {
		return nil, nil
	}

	records, err := r.store.Query(CollectionAgentProfiles, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent profiles: %w", err)
	}

	var profiles []history.AgentProfile
	for _, raw := range records {
		var profile history.AgentProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			r.logger.Debug("跳过无法解析的档案记录", "error", err)
			continue
		}
		if !agentIDs[profile.AgentID] {
			continue
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}
