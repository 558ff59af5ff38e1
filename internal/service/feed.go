package service

import (
	"context"

	"go.uber.org/zap"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/monitoring"
	"mailfeed/backend/internal/storage"
)

// FeedService 提供消息窗口的只读访问与清空操作。
//
// 读取路径对存储故障做降级处理：列表与统计在后端不可用时返回空的
// 良构结果并带降级标记，而不是把错误抛给调用方。
type FeedService struct {
	store        storage.RecordStore
	defaultLimit int
	metrics      *monitoring.Metrics
	log          *zap.Logger
}

// NewFeedService 创建读取服务。metrics 可为 nil（测试场景）。
func NewFeedService(store storage.RecordStore, defaultLimit int, metrics *monitoring.Metrics, log *zap.Logger) *FeedService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &FeedService{
		store:        store,
		defaultLimit: defaultLimit,
		metrics:      metrics,
		log:          log,
	}
}

// List 返回最新的记录，limit 非正时使用服务默认值。
// 存储故障时返回空切片并置降级标记。
func (s *FeedService) List(ctx context.Context, limit int) ([]domain.MessageRecord, bool) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	records, err := s.store.ListRecords(ctx, limit)
	if err != nil {
		s.log.Error("failed to list records, serving empty feed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordStorageError("list")
		}
		return []domain.MessageRecord{}, true
	}
	if records == nil {
		records = []domain.MessageRecord{}
	}
	return records, false
}

// Get 按 ID 返回单条记录，不存在或已过期返回 storage.ErrRecordNotFound。
func (s *FeedService) Get(ctx context.Context, id string) (*domain.MessageRecord, error) {
	record, err := s.store.GetRecord(ctx, id)
	if err != nil {
		if err != storage.ErrRecordNotFound {
			s.log.Error("failed to get record", zap.String("record_id", id), zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordStorageError("get")
			}
		}
		return nil, err
	}
	return record, nil
}

// Stats 返回统计快照，存储故障时返回零值快照并置降级标记。
func (s *FeedService) Stats(ctx context.Context) (*domain.StoreStats, bool) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.log.Error("failed to read store stats, serving empty snapshot", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordStorageError("stats")
		}
		return &domain.StoreStats{}, true
	}
	if s.metrics != nil {
		s.metrics.StoreRecords.Set(float64(stats.TotalCount))
	}
	return stats, false
}

// Clear 清空消息窗口。清空失败是需要向调用方暴露的错误。
func (s *FeedService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		s.log.Error("failed to clear feed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordStorageError("clear")
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.FeedClearsTotal.Inc()
		s.metrics.StoreRecords.Set(0)
	}
	s.log.Info("feed cleared")
	return nil
}
