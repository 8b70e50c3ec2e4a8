// Package archive 提供按项目归档的 JSON 文档存储
// 每个项目、每种记录类型一个文档（decisions.json / artifacts.json / snapshot.json）
// 写入采用临时文件加原子重命名，崩溃不会留下截断的文档
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// 文档文件名
const (
	decisionsFile = "decisions.json"
	artifactsFile = "artifacts.json"
	snapshotFile  = "snapshot.json"
)

// documentMetadata 文档头部元数据
type documentMetadata struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	TotalCount  int       `json:"total_count"`
}

// decisionDocument 决策归档文档
type decisionDocument struct {
	Metadata  documentMetadata   `json:"metadata"`
	Decisions []history.Decision `json:"decisions"`
}

// artifactDocument 产物归档文档
type artifactDocument struct {
	Metadata  documentMetadata           `json:"metadata"`
	Artifacts []history.ArtifactMetadata `json:"artifacts"`
}

// snapshotDocument 项目快照归档文档
type snapshotDocument struct {
	Metadata documentMetadata        `json:"metadata"`
	Snapshot history.ProjectSnapshot `json:"snapshot"`
}

// DocumentStore 项目归档文档存储
type DocumentStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewDocumentStore 创建归档文档存储
func NewDocumentStore(cfg *config.StorageConfig) (*DocumentStore, error) {
	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &DocumentStore{
		baseDir: cfg.ArchiveDir,
		logger:  log.NewModuleLogger("infra", "archive"),
	}, nil
}

// projectDir 项目归档目录路径
func (s *DocumentStore) projectDir(projectID string) string {
	return filepath.Join(s.baseDir, projectID)
}

// AppendDecision 将决策追加进项目的决策文档
// 整个文档被读出、追加、全量重写
func (s *DocumentStore) AppendDecision(projectID, projectName string, decision *history.Decision) error {
	doc := decisionDocument{}
	path := filepath.Join(s.projectDir(projectID), decisionsFile)
	if err := readJSONFile(path, &doc); err != nil {
		return fmt.Errorf("failed to read decision document: %w", err)
	}

	doc.Decisions = append(doc.Decisions, *decision)
	doc.Metadata = documentMetadata{
		ProjectID:   projectID,
		ProjectName: projectName,
		LastUpdated: time.Now().UTC(),
		TotalCount:  len(doc.Decisions),
	}

	if err := writeJSONAtomic(path, &doc); err != nil {
		return fmt.Errorf("failed to write decision document: %w", err)
	}

	s.logger.Debug("决策已归档", "project_id", projectID, "decision_id", decision.ID, "total", doc.Metadata.TotalCount)
	return nil
}

// AppendArtifact 将产物元数据追加进项目的产物文档
func (s *DocumentStore) AppendArtifact(projectID, projectName string, artifact *history.ArtifactMetadata) error {
	doc := artifactDocument{}
	path := filepath.Join(s.projectDir(projectID), artifactsFile)
	if err := readJSONFile(path, &doc); err != nil {
		return fmt.Errorf("failed to read artifact document: %w", err)
	}

	doc.Artifacts = append(doc.Artifacts, *artifact)
	doc.Metadata = documentMetadata{
		ProjectID:   projectID,
		ProjectName: projectName,
		LastUpdated: time.Now().UTC(),
		TotalCount:  len(doc.Artifacts),
	}

	if err := writeJSONAtomic(path, &doc); err != nil {
		return fmt.Errorf("failed to write artifact document: %w", err)
	}

	return nil
}

// WriteSnapshot 写入项目快照文档（每项目唯一，整体覆盖）
func (s *DocumentStore) WriteSnapshot(snapshot *history.ProjectSnapshot) error {
	doc := snapshotDocument{
		Metadata: documentMetadata{
			ProjectID:   snapshot.ProjectID,
			ProjectName: snapshot.ProjectName,
			LastUpdated: time.Now().UTC(),
			TotalCount:  1,
		},
		Snapshot: *snapshot,
	}

	path := filepath.Join(s.projectDir(snapshot.ProjectID), snapshotFile)
	if err := writeJSONAtomic(path, &doc); err != nil {
		return fmt.Errorf("failed to write snapshot document: %w", err)
	}

	return nil
}

// ReadDecisions 读取项目的全部归档决策；文档不存在时返回空
func (s *DocumentStore) ReadDecisions(projectID string) ([]history.Decision, error) {
	doc := decisionDocument{}
	path := filepath.Join(s.projectDir(projectID), decisionsFile)
	if err := readJSONFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read decision document: %w", err)
	}
	return doc.Decisions, nil
}

// ReadArtifacts 读取项目的全部归档产物
func (s *DocumentStore) ReadArtifacts(projectID string) ([]history.ArtifactMetadata, error) {
	doc := artifactDocument{}
	path := filepath.Join(s.projectDir(projectID), artifactsFile)
	if err := readJSONFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read artifact document: %w", err)
	}
	return doc.Artifacts, nil
}

// ReadSnapshot 读取项目快照；文档不存在时返回 (nil, nil)
func (s *DocumentStore) ReadSnapshot(projectID string) (*history.ProjectSnapshot, error) {
	path := filepath.Join(s.projectDir(projectID), snapshotFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	doc := snapshotDocument{}
	if err := readJSONFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read snapshot document: %w", err)
	}
	return &doc.Snapshot, nil
}

// ListProjects 列出拥有归档文档的项目 ID（升序）
func (s *DocumentStore) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list archive directory: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	sort.Strings(projects)
	return projects, nil
}

// readJSONFile 读取 JSON 文件；文件不存在时保持零值不报错
func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSONAtomic 临时文件加原子重命名写入
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
