package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/monitoring"
	"mailfeed/backend/internal/reconcile"
	"mailfeed/backend/internal/storage"
)

// Reconciler 抽象历史对账能力，便于测试注入。
type Reconciler interface {
	Reconcile(ctx context.Context, cursor string) ([]*gmailapi.Message, error)
}

// IngestStatus 标识一次通知处理的终态。
type IngestStatus string

const (
	// StatusInvalidEnvelope 信封解码失败，通知被丢弃
	StatusInvalidEnvelope IngestStatus = "invalid_envelope"
	// StatusSynthetic 合成测试通知，已插入占位记录
	StatusSynthetic IngestStatus = "synthetic"
	// StatusReconcileFailed 提供方对账失败，按零结果处理
	StatusReconcileFailed IngestStatus = "reconcile_failed"
	// StatusProcessed 正常处理完成（可能产生 0 条记录）
	StatusProcessed IngestStatus = "processed"
)

// IngestResult 是一次通知处理的显式结果。
//
// 管道对外的契约是"从不让入站确认失败"：内部错误记录在 Err 中供调用方
// 观测与记日志，但无论结果如何传输层都应答成功，否则推送端会对一条
// 当前无法处理的消息重试风暴。
type IngestResult struct {
	Status  IngestStatus
	Account string
	Cursor  string
	Fetched int
	Stored  int
	Err     error
}

// IngestService 编排 解码 → 对账 → 提取 → 入库 的摄取管道。
type IngestService struct {
	reconciler Reconciler
	store      storage.RecordStore
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewIngestService 创建摄取服务。metrics 可为 nil（测试场景）。
func NewIngestService(reconciler Reconciler, store storage.RecordStore, metrics *monitoring.Metrics, log *zap.Logger) *IngestService {
	return &IngestService{
		reconciler: reconciler,
		store:      store,
		metrics:    metrics,
		log:        log,
	}
}

// Process 处理一条入站通知，所有分支都是终态。
func (s *IngestService) Process(ctx context.Context, envelope *domain.PushEnvelope) *IngestResult {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if s.metrics != nil {
		s.metrics.NotificationsReceived.Inc()
	}

	event, err := domain.DecodePushData(envelope.Message.Data)
	if err != nil {
		s.log.Warn("dropping undecodable notification",
			zap.String("message_id", envelope.Message.MessageID),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.DecodeFailures.Inc()
		}
		return &IngestResult{Status: StatusInvalidEnvelope, Err: err}
	}

	cursor := event.HistoryID.String()
	result := &IngestResult{
		Account: event.EmailAddress,
		Cursor:  cursor,
	}

	// 合成测试标记：直接插入占位记录，不触碰在线提供方
	if event.HistoryID.IsTestMarker() {
		result.Status = StatusSynthetic
		if s.insert(ctx, s.placeholderRecord(event)) {
			result.Stored = 1
		}
		if s.metrics != nil {
			s.metrics.SyntheticRecords.Inc()
		}
		s.log.Info("stored placeholder for synthetic notification",
			zap.String("cursor", cursor))
		return result
	}

	messages, err := s.reconciler.Reconcile(ctx, cursor)
	if err != nil {
		// 对账失败按零结果处理，本次通知丢弃，核心不安排重试
		s.log.Error("reconciliation failed, dropping notification",
			zap.String("cursor", cursor),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.ReconcileFailures.Inc()
		}
		result.Status = StatusReconcileFailed
		result.Err = err
		return result
	}

	result.Status = StatusProcessed
	result.Fetched = len(messages)

	now := time.Now().UTC()
	for _, msg := range messages {
		record := reconcile.Extract(msg)
		record.ReceivedAt = now
		record.HistoryID = cursor
		if s.insert(ctx, &record) {
			result.Stored++
		}
	}

	s.log.Info("notification processed",
		zap.String("account", event.EmailAddress),
		zap.String("cursor", cursor),
		zap.Int("fetched", result.Fetched),
		zap.Int("stored", result.Stored))

	return result
}

// insert 入库单条记录；失败记录日志并吞掉，管道继续处理后续记录。
func (s *IngestService) insert(ctx context.Context, record *domain.MessageRecord) bool {
	if err := s.store.InsertRecord(ctx, record); err != nil {
		s.log.Error("failed to store record",
			zap.String("record_id", record.ID),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.InsertFailures.Inc()
			s.metrics.RecordStorageError("insert")
		}
		return false
	}
	if s.metrics != nil {
		s.metrics.RecordsInserted.Inc()
	}
	return true
}

// placeholderRecord 为合成测试通知构造占位记录。
func (s *IngestService) placeholderRecord(event *domain.ChangeEvent) *domain.MessageRecord {
	now := time.Now().UTC()
	return &domain.MessageRecord{
		ID:         uuid.NewString(),
		Subject:    "[TEST] synthetic push notification",
		From:       "mailfeed@selftest",
		To:         event.EmailAddress,
		Date:       now.Format(time.RFC1123Z),
		Snippet:    fmt.Sprintf("synthetic notification for cursor %s", event.HistoryID),
		ReceivedAt: now,
		HistoryID:  event.HistoryID.String(),
	}
}
