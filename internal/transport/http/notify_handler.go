package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/pool"
	"mailfeed/backend/internal/service"
)

// ingestTimeout 是异步处理单条通知的上限，覆盖对账与抓取的全部在线调用。
const ingestTimeout = 2 * time.Minute

// NotifyHandler 推送通知处理器。
//
// 入站契约是无条件确认：不管信封能否解析、管道处理成败，都应答 204，
// 避免推送端对一条坏消息重试风暴。处理结果通过日志与指标观测。
type NotifyHandler struct {
	ingest *service.IngestService
	pool   *pool.WorkerPool // 为 nil 时同步处理
	log    *zap.Logger
}

// NewNotifyHandler 创建推送通知处理器
func NewNotifyHandler(ingest *service.IngestService, workerPool *pool.WorkerPool, log *zap.Logger) *NotifyHandler {
	return &NotifyHandler{
		ingest: ingest,
		pool:   workerPool,
		log:    log,
	}
}

// handleNotification 处理 POST /notifications/gmail
func (h *NotifyHandler) handleNotification(c *gin.Context) {
	var envelope domain.PushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		// 信封本身不可解析也要确认，否则推送端会无限重试
		h.log.Warn("received unparseable push envelope", zap.Error(err))
		c.Status(http.StatusNoContent)
		return
	}

	if h.pool != nil {
		env := envelope
		submitted := h.pool.TrySubmit(func() {
			// 请求上下文在应答后即失效，异步处理挂接独立的超时上下文
			ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
			defer cancel()
			h.ingest.Process(ctx, &env)
		})
		if !submitted {
			// 队列已满时退回同步处理，保证通知不丢
			h.log.Warn("ingest queue full, processing inline")
			h.ingest.Process(c.Request.Context(), &env)
		}
	} else {
		h.ingest.Process(c.Request.Context(), &envelope)
	}

	c.Status(http.StatusNoContent)
}
