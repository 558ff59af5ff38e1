package memory

import (
	"context"
	"sync"
	"time"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/storage"
)

// Store 使用内存保存有界消息窗口，主要用于开发与测试。
//
// 有序队列为队头最新的切片，超出容量按位置截断；按 ID 索引为带独立
// 过期时间的映射。两套淘汰互不影响。
type Store struct {
	mu           sync.RWMutex
	records      []domain.MessageRecord
	byID         map[string]*indexEntry
	lastReceived *time.Time
	maxLen       int
	recordTTL    time.Duration
}

type indexEntry struct {
	record    domain.MessageRecord
	expiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore(maxMessages int, recordTTL time.Duration) *Store {
	return &Store{
		records:   make([]domain.MessageRecord, 0, maxMessages),
		byID:      make(map[string]*indexEntry),
		maxLen:    maxMessages,
		recordTTL: recordTTL,
	}
}

// InsertRecord 将记录插入队列头部并截断到容量上限。
//
// 不按 ID 去重：同一 ID 两次插入产生两条可见条目，直到被位置淘汰。
func (s *Store) InsertRecord(_ context.Context, record *domain.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append([]domain.MessageRecord{*record}, s.records...)
	if len(s.records) > s.maxLen {
		s.records = s.records[:s.maxLen]
	}

	s.byID[record.ID] = &indexEntry{
		record:    *record,
		expiresAt: time.Now().Add(s.recordTTL),
	}

	received := record.ReceivedAt
	s.lastReceived = &received

	return nil
}

// ListRecords 返回最新的 min(limit, 当前长度) 条记录。
func (s *Store) ListRecords(_ context.Context, limit int) ([]domain.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || len(s.records) == 0 {
		return []domain.MessageRecord{}, nil
	}
	if limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]domain.MessageRecord, limit)
	copy(out, s.records[:limit])
	return out, nil
}

// GetRecord 按 ID 返回未过期的索引条目，与记录是否还在可见列表无关。
func (s *Store) GetRecord(_ context.Context, id string) (*domain.MessageRecord, error) {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.byID, id)
		s.mu.Unlock()
		return nil, storage.ErrRecordNotFound
	}

	record := entry.record
	return &record, nil
}

// Stats 返回统计快照，队列为空时各日期字段为 nil。
func (s *Store) Stats(_ context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.StoreStats{
		TotalCount:     len(s.records),
		LastReceivedAt: s.lastReceived,
	}

	if len(s.records) > 0 {
		newest := s.records[0].Date
		oldest := s.records[len(s.records)-1].Date
		stats.NewestDate = &newest
		stats.OldestDate = &oldest
	}

	return stats, nil
}

// Clear 清空队列与全部索引并重置最近接收时间。
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
	s.byID = make(map[string]*indexEntry)
	s.lastReceived = nil

	return nil
}

// SelfTest 内存后端的自检总是成功。
func (s *Store) SelfTest(_ context.Context) error {
	return nil
}

// Close 关闭存储连接
func (s *Store) Close() error {
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	return nil
}
