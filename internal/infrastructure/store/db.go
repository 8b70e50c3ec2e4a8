// Package store 提供持久化记录存储（Durable Store）
// 通用的 collection/key 记录模型，底层为 SQLite
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hindsight/backend/internal/infrastructure/config"
)

// OpenDB 打开数据库连接
func OpenDB(dbPath string) (*sql.DB, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitDatabase 初始化表结构
func InitDatabase(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, key)
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create records index: %w", err)
	}

	return nil
}

// ProvideDB 打开并初始化数据库（wire provider）
func ProvideDB(cfg *config.StorageConfig) (*sql.DB, error) {
	db, err := OpenDB(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}
