package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailfeed/backend/internal/config"
	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/storage"
)

// 后端键布局：
//   feed:messages        — 有序列表，队头为最新记录（LPUSH + LTRIM 截断）
//   feed:message:<id>    — 按 ID 索引的单条记录，带独立过期时间
//   feed:last_received   — 最近一次成功插入的时间戳
const (
	listKey         = "feed:messages"
	recordKeyPrefix = "feed:message:"
	lastReceivedKey = "feed:last_received"
)

// Store 基于 Redis 的有界消息窗口实现。
//
// 单条 Redis 命令由服务端串行化，但 InsertRecord 的列表写入、索引写入与
// 时间戳更新是多条独立命令，并发读取可能短暂观察到中间状态。这是文档化的
// 最终一致行为，不影响结构正确性：列表截断只移除队尾，索引写入只影响单键。
type Store struct {
	rdb       *goredis.Client
	log       *zap.Logger
	maxLen    int64
	recordTTL time.Duration
}

// New 创建 Redis 存储实例并验证连通性。
func New(cfg *config.RedisConfig, maxMessages int, recordTTL time.Duration, log *zap.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &Store{
		rdb:       rdb,
		log:       log,
		maxLen:    int64(maxMessages),
		recordTTL: recordTTL,
	}, nil
}

// InsertRecord 将记录插入队列头部并截断到容量上限。
func (s *Store) InsertRecord(ctx context.Context, record *domain.MessageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.rdb.LPush(ctx, listKey, data).Err(); err != nil {
		return fmt.Errorf("push record: %w", err)
	}
	if err := s.rdb.LTrim(ctx, listKey, 0, s.maxLen-1).Err(); err != nil {
		return fmt.Errorf("trim record list: %w", err)
	}

	// 按 ID 索引独立过期，记录滚出列表后仍可直接查询
	idKey := recordKeyPrefix + record.ID
	if err := s.rdb.Set(ctx, idKey, data, s.recordTTL).Err(); err != nil {
		return fmt.Errorf("index record: %w", err)
	}

	if err := s.rdb.Set(ctx, lastReceivedKey, record.ReceivedAt.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("update last received: %w", err)
	}

	return nil
}

// ListRecords 返回最新的 limit 条记录。
func (s *Store) ListRecords(ctx context.Context, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		return []domain.MessageRecord{}, nil
	}

	items, err := s.rdb.LRange(ctx, listKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("range record list: %w", err)
	}

	records := make([]domain.MessageRecord, 0, len(items))
	for _, item := range items {
		var record domain.MessageRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			// 损坏的单条不拖垮整个列表
			s.log.Warn("skipping corrupt record in list", zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// GetRecord 按 ID 返回未过期的索引条目。
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.MessageRecord, error) {
	data, err := s.rdb.Get(ctx, recordKeyPrefix+id).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var record domain.MessageRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}

	return &record, nil
}

// Stats 读取队头与队尾记录及缓存的最近接收时间。
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{}

	length, err := s.rdb.LLen(ctx, listKey).Result()
	if err != nil {
		return nil, fmt.Errorf("record list length: %w", err)
	}
	stats.TotalCount = int(length)

	if length > 0 {
		if newest, err := s.recordAt(ctx, 0); err == nil {
			stats.NewestDate = &newest.Date
		}
		if oldest, err := s.recordAt(ctx, -1); err == nil {
			stats.OldestDate = &oldest.Date
		}
	}

	if raw, err := s.rdb.Get(ctx, lastReceivedKey).Result(); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			stats.LastReceivedAt = &t
		}
	}

	return stats, nil
}

// Clear 清空有序队列、当前可枚举到的全部按 ID 索引及最近接收时间。
//
// 多条删除命令按序尽力执行；清空过程中到达的通知可能与之交错。
func (s *Store) Clear(ctx context.Context) error {
	items, err := s.rdb.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("enumerate records for clear: %w", err)
	}

	keys := make([]string, 0, len(items)+2)
	for _, item := range items {
		var record domain.MessageRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			continue
		}
		keys = append(keys, recordKeyPrefix+record.ID)
	}
	keys = append(keys, listKey, lastReceivedKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	return nil
}

// SelfTest 对后端执行一次一次性的写入/读取/过期自检。
func (s *Store) SelfTest(ctx context.Context) error {
	key := "feed:selftest:" + uuid.NewString()
	value := time.Now().Format(time.RFC3339Nano)

	if err := s.rdb.Set(ctx, key, value, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("selftest write: %w", err)
	}

	got, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("selftest read: %w", err)
	}
	if got != value {
		return fmt.Errorf("selftest readback mismatch")
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("selftest expire: %w", err)
	}

	return nil
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		s.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	s.log.Info("Redis connection closed")
	return nil
}

// Health 测试 Redis 连通性。
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) recordAt(ctx context.Context, index int64) (*domain.MessageRecord, error) {
	data, err := s.rdb.LIndex(ctx, listKey, index).Result()
	if err != nil {
		return nil, err
	}
	var record domain.MessageRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}
