package httptransport

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mailfeed/backend/internal/service"
	"mailfeed/backend/internal/storage"
)

// FeedHandler 消息流读取处理器
type FeedHandler struct {
	feed *service.FeedService
}

// NewFeedHandler 创建消息流处理器
func NewFeedHandler(feed *service.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// listFeed 处理 GET /v1/feed
//
// limit 非正或缺省时使用服务默认值；存储故障降级为空列表并置 degraded。
func (h *FeedHandler) listFeed(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, MsgInvalidLimit)
			return
		}
		limit = parsed
	}

	records, listDegraded := h.feed.List(c.Request.Context(), limit)
	stats, statsDegraded := h.feed.Stats(c.Request.Context())

	Success(c, gin.H{
		"records":   records,
		"count":     len(records),
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"degraded":  listDegraded || statsDegraded,
	})
}

// getRecord 处理 GET /v1/feed/:id
func (h *FeedHandler) getRecord(c *gin.Context) {
	id := c.Param("id")

	record, err := h.feed.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			NotFound(c, MsgRecordNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, record)
}

// getStats 处理 GET /v1/feed/stats
func (h *FeedHandler) getStats(c *gin.Context) {
	stats, degraded := h.feed.Stats(c.Request.Context())

	Success(c, gin.H{
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"degraded":  degraded,
	})
}

// clearFeed 处理 DELETE /v1/feed
func (h *FeedHandler) clearFeed(c *gin.Context) {
	if err := h.feed.Clear(c.Request.Context()); err != nil {
		InternalError(c, MsgFeedClearFailed)
		return
	}

	SuccessWithMsg(c, "清空成功", gin.H{
		"success": true,
	})
}
