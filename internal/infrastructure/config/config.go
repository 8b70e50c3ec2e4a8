package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Watcher   WatcherConfig   `yaml:"watcher"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	// DataDir 数据根目录，留空表示 ~/.hindsight
	DataDir string `yaml:"data_dir"`

	// ConversationLogDir 会话日志目录（NDJSON 文件）
	// 留空表示 <DataDir>/conversations
	ConversationLogDir string `yaml:"conversation_log_dir"`

	// ArchiveDir 项目归档文档目录
	// 留空表示 <DataDir>/projects
	ArchiveDir string `yaml:"archive_dir"`

	// DatabasePath 记录存储数据库路径
	// 留空表示 <DataDir>/hindsight.db
	DatabasePath string `yaml:"database_path"`
}

// LLMConfig LLM API 配置
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingConfig Embedding / 向量索引配置
// BaseURL 为空表示语义索引功能关闭
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`
	Collection string `yaml:"collection"`
}

// AnalysisConfig 分析管线配置
type AnalysisConfig struct {
	// CacheTTLSeconds 聚合结果缓存有效期（秒）
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	// PageSize 分页加载的默认页大小
	PageSize int `yaml:"page_size"`

	// QuickCompletionSeconds 快速完成判定阈值（秒）
	QuickCompletionSeconds float64 `yaml:"quick_completion_seconds"`
}

// WatcherConfig 会话日志监听配置
type WatcherConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// NewConfig 创建配置（默认值 + 配置文件覆盖 + 环境变量覆盖）
func NewConfig() *Config {
	cfg := defaultConfig()

	// 配置文件不存在是正常情况，使用默认值
	if path, err := configFilePath(); err == nil {
		if data, err := os.ReadFile(path); err == nil {
			// 解析失败保持默认值，不中断启动
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	// 敏感信息优先从环境变量读取
	if v := os.Getenv("HINDSIGHT_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("HINDSIGHT_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("HINDSIGHT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("HINDSIGHT_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("HINDSIGHT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	cfg.Storage.applyDefaults()
	return cfg
}

// defaultConfig 默认配置
func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   4000,
			Temperature: 0.3,
		},
		Embedding: EmbeddingConfig{
			QdrantHost: "localhost",
			QdrantPort: 6334,
			Collection: "hindsight_conversations",
		},
		Analysis: AnalysisConfig{
			CacheTTLSeconds:        60,
			PageSize:               100,
			QuickCompletionSeconds: 30,
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
	}
}

// configFilePath 配置文件路径 ~/.hindsight/config.yaml
func configFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hindsight", "config.yaml"), nil
}

// applyDefaults 填充存储路径默认值
func (s *StorageConfig) applyDefaults() {
	if s.DataDir == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			s.DataDir = filepath.Join(homeDir, ".hindsight")
		} else {
			s.DataDir = ".hindsight"
		}
	}
	if s.ConversationLogDir == "" {
		s.ConversationLogDir = filepath.Join(s.DataDir, "conversations")
	}
	if s.ArchiveDir == "" {
		s.ArchiveDir = filepath.Join(s.DataDir, "projects")
	}
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataDir, "hindsight.db")
	}
}

// NewStorageConfig 提供存储配置
func NewStorageConfig(cfg *Config) *StorageConfig {
	return &cfg.Storage
}

// NewLLMConfig 提供 LLM 配置
func NewLLMConfig(cfg *Config) *LLMConfig {
	return &cfg.LLM
}

// NewEmbeddingConfig 提供 Embedding 配置
func NewEmbeddingConfig(cfg *Config) *EmbeddingConfig {
	return &cfg.Embedding
}

// NewAnalysisConfig 提供分析配置
func NewAnalysisConfig(cfg *Config) *AnalysisConfig {
	return &cfg.Analysis
}

// NewWatcherConfig 提供监听配置
func NewWatcherConfig(cfg *Config) *WatcherConfig {
	return &cfg.Watcher
}
