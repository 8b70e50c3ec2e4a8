// Package vector 提供会话语义索引的 Qdrant 向量存储
// 连接一个已在运行的 Qdrant 实例，不负责其进程生命周期
package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/hindsight/backend/internal/infrastructure/config"
	"github.com/hindsight/backend/internal/infrastructure/log"
)

// Store 向量存储
type Store struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// MessagePoint 一条待索引的会话消息
type MessagePoint struct {
	ID        string
	ProjectID string
	TaskID    string
	AgentID   string
	Timestamp string
	Text      string
	Vector    []float32
}

// SearchHit 语义检索命中
type SearchHit struct {
	ID        string  `json:"id"`
	Score     float32 `json:"score"`
	ProjectID string  `json:"project_id"`
	TaskID    string  `json:"task_id,omitempty"`
	AgentID   string  `json:"agent_id,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Text      string  `json:"text"`
}

// NewStore 连接 Qdrant 并创建向量存储
func NewStore(cfg *config.EmbeddingConfig) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		logger:     log.NewModuleLogger("infra", "vector"),
	}, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection 确保集合存在，不存在时按给定维度创建
func (s *Store) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range existing {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	s.logger.Info("向量集合已创建", "collection", s.collection, "vector_size", vectorSize)
	return nil
}

// UpsertMessages 批量写入消息向量
func (s *Store) UpsertMessages(ctx context.Context, points []MessagePoint) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		vectorArgs := make([]float32, len(p.Vector))
		copy(vectorArgs, p.Vector)

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(vectorArgs...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"project_id": p.ProjectID,
				"task_id":    p.TaskID,
				"agent_id":   p.AgentID,
				"timestamp":  p.Timestamp,
				"text":       p.Text,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	s.logger.Debug("消息向量已写入", "count", len(points))
	return nil
}

// Search 按查询向量检索，可选按项目过滤
func (s *Store) Search(ctx context.Context, queryVector []float32, projectID string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	qdrantLimit := uint64(limit)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &qdrantLimit,
		Filter:         buildProjectFilter(projectID),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]SearchHit, 0, len(resp))
	for _, point := range resp {
		hits = append(hits, scoredPointToHit(point))
	}
	return hits, nil
}

// buildProjectFilter 构建项目过滤条件；projectID 为空表示不过滤
func buildProjectFilter(projectID string) *qdrant.Filter {
	if projectID == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("project_id", projectID),
		},
	}
}

// scoredPointToHit 转换检索命中
func scoredPointToHit(point *qdrant.ScoredPoint) SearchHit {
	hit := SearchHit{
		Score: point.Score,
	}
	if id := point.Id.GetUuid(); id != "" {
		hit.ID = id
	}

	payload := point.Payload
	hit.ProjectID = extractStringValue(payload["project_id"])
	hit.TaskID = extractStringValue(payload["task_id"])
	hit.AgentID = extractStringValue(payload["agent_id"])
	hit.Timestamp = extractStringValue(payload["timestamp"])
	hit.Text = extractStringValue(payload["text"])
	return hit
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	if s, ok := val.Kind.(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}
