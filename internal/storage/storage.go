package storage

import (
	"context"
	"errors"

	"mailfeed/backend/internal/domain"
)

var (
	// ErrRecordNotFound 记录未找到（或按 ID 索引已过期）
	ErrRecordNotFound = errors.New("record not found")
)

// RecordStore 定义有界消息窗口的存取操作。
//
// 有序队列按位置淘汰（超出容量的最旧条目被丢弃）；按 ID 索引按时间独立淘汰。
// 两套淘汰策略互不影响：记录可能已滚出可见列表却仍可按 ID 取到，反之亦然。
// Insert 不按 ID 去重——同一 ID 两次插入产生两条可见条目。
type RecordStore interface {
	// InsertRecord 将记录插入队列头部、截断到容量上限、刷新按 ID 索引
	// 并更新最近接收时间。并发调用安全。
	InsertRecord(ctx context.Context, record *domain.MessageRecord) error

	// ListRecords 返回最新的 min(limit, 当前长度) 条记录，队列为空时返回空切片。
	ListRecords(ctx context.Context, limit int) ([]domain.MessageRecord, error)

	// GetRecord 按 ID 返回未过期的索引条目，不存在或已过期返回 ErrRecordNotFound。
	GetRecord(ctx context.Context, id string) (*domain.MessageRecord, error)

	// Stats 返回统计快照，队列为空时各日期字段为 nil。
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// Clear 清空有序队列、全部按 ID 索引并重置最近接收时间。
	Clear(ctx context.Context) error

	// SelfTest 对后端执行一次一次性的写入/读取/过期自检。
	SelfTest(ctx context.Context) error

	// Close 关闭存储连接
	Close() error

	// Health 健康检查
	Health() error
}
