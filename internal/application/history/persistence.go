// Package history 实现项目执行历史的持久化、调和与查询服务
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/archive"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
	"github.com/hindsight/backend/internal/infrastructure/store"
)

// 记录存储中的 collection 名称
const (
	CollectionDecisions = "decisions"
	CollectionArtifacts = "artifacts"
	CollectionSnapshots = "snapshots"
)

// DefaultPageSize 分页加载的默认页大小
const DefaultPageSize = 100

// PersistenceService 决策/产物/快照的持久化服务
// 每次追加执行两处写入：先重写项目归档文档（临时文件加原子重命名），
// 再 upsert 到记录存储。两处写入不在一个事务内，两写之间崩溃
// 会留下不一致，这是已知且不做调和的局限
type PersistenceService struct {
	documents     *archive.DocumentStore
	records       *store.RecordStore
	conversations domain.ConversationSource
	pageSize      int
	logger        *slog.Logger
}

// NewPersistenceService 创建持久化服务
func NewPersistenceService(
	documents *archive.DocumentStore,
	records *store.RecordStore,
	conversations domain.ConversationSource,
	cfg *config.AnalysisConfig,
) *PersistenceService {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &PersistenceService{
		documents:     documents,
		records:       records,
		conversations: conversations,
		pageSize:      pageSize,
		logger:        log.NewModuleLogger("history", "persistence"),
	}
}

// AppendDecision 追加一条架构决策
// projectID 仅写入记录的 advisory 字段，读取侧不会依据它过滤
func (s *PersistenceService) AppendDecision(projectID, projectName string, decision *domain.Decision) error {
	if decision.TaskID == "" {
		return fmt.Errorf("append decision: task_id is required")
	}
	if decision.ID == "" {
		decision.ID = uuid.New().String()
	}
	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	} else {
		decision.Timestamp = decision.Timestamp.UTC()
	}
	decision.ProjectID = projectID

	if err := s.documents.AppendDecision(projectID, projectName, decision); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	if err := s.records.Store(CollectionDecisions, decision.ID, decision); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}

	s.logger.Info("决策已持久化",
		"project_id", projectID,
		"decision_id", decision.ID,
		"task_id", decision.TaskID,
	)
	return nil
}

// AppendArtifact 追加一条产物元数据
func (s *PersistenceService) AppendArtifact(projectID, projectName string, artifact *domain.ArtifactMetadata) error {
	if artifact.TaskID == "" {
		return fmt.Errorf("append artifact: task_id is required")
	}
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.Timestamp.IsZero() {
		artifact.Timestamp = time.Now().UTC()
	} else {
		artifact.Timestamp = artifact.Timestamp.UTC()
	}
	artifact.ProjectID = projectID

	if err := s.documents.AppendArtifact(projectID, projectName, artifact); err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}
	if err := s.records.Store(CollectionArtifacts, artifact.ID, artifact); err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}

	s.logger.Info("产物已持久化",
		"project_id", projectID,
		"artifact_id", artifact.ID,
		"filename", artifact.Filename,
	)
	return nil
}

// SaveSnapshot 保存项目快照（每项目唯一，整体覆盖）
func (s *PersistenceService) SaveSnapshot(snapshot *domain.ProjectSnapshot) error {
	if snapshot.ProjectID == "" {
		return fmt.Errorf("save snapshot: project_id is required")
	}
	if snapshot.CompletedAt.IsZero() {
		snapshot.CompletedAt = time.Now().UTC()
	} else {
		snapshot.CompletedAt = snapshot.CompletedAt.UTC()
	}

	if err := s.documents.WriteSnapshot(snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.records.Store(CollectionSnapshots, snapshot.ProjectID, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info("项目快照已保存", "project_id", snapshot.ProjectID)
	return nil
}

// LoadDecisions 分页读取项目的决策
// 先从会话日志推导项目的权威任务集合，再按 task_id 过滤记录存储；
// 任务集合为空时直接返回空页，不访问存储
func (s *PersistenceService) LoadDecisions(projectID string, limit, offset int) ([]domain.Decision, error) {
	taskIDs, err := s.conversations.ProjectTaskIDs(projectID)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}
	if len(taskIDs) == 0 {
		return nil, nil
	}

	records, err := s.queryByTaskSet(CollectionDecisions, taskIDs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}

	decisions := make([]domain.Decision, 0, len(records))
	for _, raw := range records {
		var decision domain.Decision
		if err := json.Unmarshal(raw, &decision); err != nil {
			s.logger.Debug("跳过无法解析的决策记录", "error", err)
			continue
		}
		decisions = append(decisions, decision)
	}

	return applyWindow(decisions, limit, offset), nil
}

// LoadArtifacts 分页读取项目的产物元数据
func (s *PersistenceService) LoadArtifacts(projectID string, limit, offset int) ([]domain.ArtifactMetadata, error) {
	taskIDs, err := s.conversations.ProjectTaskIDs(projectID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	if len(taskIDs) == 0 {
		return nil, nil
	}

	records, err := s.queryByTaskSet(CollectionArtifacts, taskIDs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	artifacts := make([]domain.ArtifactMetadata, 0, len(records))
	for _, raw := range records {
		var artifact domain.ArtifactMetadata
		if err := json.Unmarshal(raw, &artifact); err != nil {
			s.logger.Debug("跳过无法解析的产物记录", "error", err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	return applyWindow(artifacts, limit, offset), nil
}

// LoadSnapshot 读取项目快照；不存在时返回 (nil, nil)
func (s *PersistenceService) LoadSnapshot(projectID string) (*domain.ProjectSnapshot, error) {
	raw, err := s.records.Get(CollectionSnapshots, projectID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var snapshot domain.ProjectSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListProjects 列出拥有归档记录的项目
func (s *PersistenceService) ListProjects() ([]string, error) {
	projects, err := s.documents.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// LoadAllDecisions 翻页读取项目的全部决策
// 记录存储单次查询有上限，完整读取必须逐页进行
func (s *PersistenceService) LoadAllDecisions(projectID string) ([]domain.Decision, error) {
	var all []domain.Decision
	for offset := 0; ; offset += s.pageSize {
		page, err := s.LoadDecisions(projectID, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
	}
}

// LoadAllArtifacts 翻页读取项目的全部产物
func (s *PersistenceService) LoadAllArtifacts(projectID string) ([]domain.ArtifactMetadata, error) {
	var all []domain.ArtifactMetadata
	for offset := 0; ; offset += s.pageSize {
		page, err := s.LoadArtifacts(projectID, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
	}
}

// queryByTaskSet 按任务集合过滤查询；检索量为 limit+offset，窗口在客户端应用
func (s *PersistenceService) queryByTaskSet(collection string, taskIDs map[string]bool, limit, offset int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > store.MaxQueryResults {
		limit = store.MaxQueryResults
	}
	if offset < 0 {
		offset = 0
	}

	filter := func(raw json.RawMessage) bool {
		var probe struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return false
		}
		return taskIDs[probe.TaskID]
	}

	return s.records.Query(collection, filter, limit+offset)
}

// applyWindow 在客户端应用 offset/limit 窗口
func applyWindow[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
