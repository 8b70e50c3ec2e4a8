package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// MaxQueryResults 单次查询的记录数上限
// 超出部分被静默截断，调用方必须自行分页
const MaxQueryResults = 10000

// RecordStore 通用记录存储
// Store 以 (collection, key) 为主键 upsert；Query 在 collection 内
// 按 key 顺序扫描并应用过滤器，结果数以 MaxQueryResults 为上限
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore 创建记录存储实例
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Store 写入或覆盖一条记录
func (s *RecordStore) Store(collection, key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO records (collection, key, record, updated_at)
		VALUES (?, ?, ?, ?)`

	_, err = s.db.Exec(query, collection, key, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store record %s/%s: %w", collection, key, err)
	}

	return nil
}

// Get 按 key 读取单条记录；未找到返回 (nil, nil)
func (s *RecordStore) Get(collection, key string) (json.RawMessage, error) {
	query := `SELECT record FROM records WHERE collection = ? AND key = ?`

	var data string
	err := s.db.QueryRow(query, collection, key).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record %s/%s: %w", collection, key, err)
	}

	return json.RawMessage(data), nil
}

// Query 扫描 collection 并应用过滤器
// filter 为 nil 表示不过滤；limit <= 0 或超过上限时取 MaxQueryResults
func (s *RecordStore) Query(collection string, filter func(json.RawMessage) bool, limit int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > MaxQueryResults {
		limit = MaxQueryResults
	}

	query := `SELECT record FROM records WHERE collection = ? ORDER BY key`

	rows, err := s.db.Query(query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		record := json.RawMessage(data)
		if filter != nil && !filter(record) {
			continue
		}

		results = append(results, record)
		if len(results) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}

	return results, nil
}

// Count collection 内的记录总数
func (s *RecordStore) Count(collection string) (int, error) {
	query := `SELECT COUNT(*) FROM records WHERE collection = ?`

	var count int
	if err := s.db.QueryRow(query, collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", collection, err)
	}

	return count, nil
}
