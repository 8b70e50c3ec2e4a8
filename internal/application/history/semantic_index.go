package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domain "github.com/hindsight/backend/internal/domain/history"
	"github.com/hindsight/backend/internal/infrastructure/log"
	"github.com/hindsight/backend/internal/infrastructure/vector"
)

// TextEmbedder 文本向量化边界
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// MessageVectorStore 消息向量的存取边界
type MessageVectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	UpsertMessages(ctx context.Context, points []vector.MessagePoint) error
	Search(ctx context.Context, queryVector []float32, projectID string, limit int) ([]vector.SearchHit, error)
}

// SemanticIndexService 会话消息的语义索引（可选功能）
// 未配置 Embedding 服务时 ProvideSemanticIndex 返回 nil，
// 调用方以 nil 判断功能是否开启
type SemanticIndexService struct {
	conversations domain.ConversationSource
	embedder      TextEmbedder
	store         MessageVectorStore
	logger        *slog.Logger
}

// NewSemanticIndexService 创建语义索引服务
func NewSemanticIndexService(
	conversations domain.ConversationSource,
	embedder TextEmbedder,
	store MessageVectorStore,
) *SemanticIndexService {
	if embedder == nil || store == nil {
		return nil
	}

	return &SemanticIndexService{
		conversations: conversations,
		embedder:      embedder,
		store:         store,
		logger:        log.NewModuleLogger("history", "semantic_index"),
	}
}

// IndexProject 为一个项目的会话消息建立向量索引
func (s *SemanticIndexService) IndexProject(ctx context.Context, projectID string) (int, error) {
	messages, err := s.conversations.ReadProjectMessages(projectID)
	if err != nil {
		return 0, fmt.Errorf("index project %s: %w", projectID, err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	texts := make([]string, len(messages))
	for i := range messages {
		texts[i] = messages[i].Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("index project %s: %w", projectID, err)
	}
	if len(vectors) != len(messages) {
		return 0, fmt.Errorf("index project %s: embedding count mismatch: got %d, want %d",
			projectID, len(vectors), len(messages))
	}

	if err := s.store.EnsureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return 0, fmt.Errorf("index project %s: %w", projectID, err)
	}

	points := make([]vector.MessagePoint, len(messages))
	for i := range messages {
		points[i] = vector.MessagePoint{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			TaskID:    messages[i].TaskID(),
			AgentID:   messages[i].AgentID,
			Timestamp: messages[i].Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Text:      messages[i].Text,
			Vector:    vectors[i],
		}
	}

	if err := s.store.UpsertMessages(ctx, points); err != nil {
		return 0, fmt.Errorf("index project %s: %w", projectID, err)
	}

	s.logger.Info("会话语义索引完成", "project_id", projectID, "messages", len(points))
	return len(points), nil
}

// Search 语义检索项目内的会话消息
func (s *SemanticIndexService) Search(ctx context.Context, projectID, query string, limit int) ([]vector.SearchHit, error) {
	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("semantic search: invalid embedding result")
	}

	hits, err := s.store.Search(ctx, vectors[0], projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return hits, nil
}
