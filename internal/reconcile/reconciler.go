package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailfeed/backend/internal/gmail"
)

// cursorPattern 合法游标必须是十进制数字串。
var cursorPattern = regexp.MustCompile(`^\d+$`)

// Reconciler 将一次点状通知还原为具体的新邮件。
//
// 主路径查询自游标起的变更历史；历史条目为零时回退到收件箱最近一封
// 未读邮件。推送可能领先于历史可用性，也可能指向已滚动过期的历史窗口，
// 回退用精度换取及时性——偶尔会返回已见过或无关的邮件，这是有意的
// 尽力而为策略，不是恰好一次保证。
type Reconciler struct {
	provider        gmail.Provider
	fetchWorkers    int
	log             *zap.Logger
	fallbackCounter prometheus.Counter
}

// New 创建 Reconciler。fetchWorkers 限制并发拉取邮件详情的上限。
func New(provider gmail.Provider, fetchWorkers int, log *zap.Logger) *Reconciler {
	if fetchWorkers <= 0 {
		fetchWorkers = 4
	}
	return &Reconciler{
		provider:     provider,
		fetchWorkers: fetchWorkers,
		log:          log,
	}
}

// SetFallbackCounter 挂接回退次数计数器（可选）。
func (r *Reconciler) SetFallbackCounter(counter prometheus.Counter) {
	r.fallbackCounter = counter
}

// Reconcile 返回自 cursor 起新增的完整邮件序列。
//
// 非法游标（不匹配 ^\d+$）返回空序列且不触发任何提供方调用，
// 保持管道非致命。提供方调用失败返回错误，由管道按零结果处理。
func (r *Reconciler) Reconcile(ctx context.Context, cursor string) ([]*gmailapi.Message, error) {
	if !cursorPattern.MatchString(cursor) {
		r.log.Warn("skipping reconciliation for invalid cursor", zap.String("cursor", cursor))
		return nil, nil
	}

	startID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		// 数字串超出 uint64 范围的极端情况，同样按非法游标处理
		r.log.Warn("cursor out of range", zap.String("cursor", cursor))
		return nil, nil
	}

	entries, err := r.provider.ListHistory(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	// 回退条件是历史条目为零，而不是条目内新增邮件为零
	if len(entries) == 0 {
		r.log.Info("no history entries, falling back to latest unread",
			zap.String("cursor", cursor))
		if r.fallbackCounter != nil {
			r.fallbackCounter.Inc()
		}
		return r.fallbackLatestUnread(ctx)
	}

	ids := collectAddedIDs(entries)
	if len(ids) == 0 {
		return nil, nil
	}

	return r.fetchAll(ctx, ids)
}

// fallbackLatestUnread 拉取收件箱最近一封未读邮件；没有未读邮件时返回空序列。
func (r *Reconciler) fallbackLatestUnread(ctx context.Context) ([]*gmailapi.Message, error) {
	ids, err := r.provider.ListMessageIDs(ctx, gmail.UnreadInboxQuery, 1)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	msg, err := r.provider.GetMessage(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("fetch unread message: %w", err)
	}
	return []*gmailapi.Message{msg}, nil
}

// fetchAll 并发拉取全部邮件详情，保持输入顺序。
//
// 单封拉取失败跳过该封而不中断整批，管道继续处理其余记录。
func (r *Reconciler) fetchAll(ctx context.Context, ids []string) ([]*gmailapi.Message, error) {
	var mu sync.Mutex
	fetched := make(map[int]*gmailapi.Message, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fetchWorkers)

	for i, id := range ids {
		g.Go(func() error {
			msg, err := r.provider.GetMessage(gctx, id)
			if err != nil {
				r.log.Warn("failed to fetch message",
					zap.String("message_id", id),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			fetched[i] = msg
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(fetched))
	for i := range fetched {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	messages := make([]*gmailapi.Message, 0, len(fetched))
	for _, i := range indexes {
		messages = append(messages, fetched[i])
	}
	return messages, nil
}

// collectAddedIDs 收集全部历史条目中的 messageAdded 邮件 ID，去除空值。
func collectAddedIDs(entries []*gmailapi.History) []string {
	var ids []string
	for _, entry := range entries {
		for _, added := range entry.MessagesAdded {
			if added.Message != nil && added.Message.Id != "" {
				ids = append(ids, added.Message.Id)
			}
		}
	}
	return ids
}
