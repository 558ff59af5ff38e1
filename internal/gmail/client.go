package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailfeed/backend/internal/config"
)

// UnreadInboxQuery 回退路径使用的收件箱未读邮件查询。
const UnreadInboxQuery = "is:unread in:inbox"

// Provider 抽象邮件提供方的调用契约。
//
// ListHistory 返回自 startID 起的全部变更历史条目（含分页归并）；
// ListMessageIDs 按查询返回邮件 ID 列表；GetMessage 拉取完整邮件。
type Provider interface {
	GetProfile(ctx context.Context) (*gmailapi.Profile, error)
	ListHistory(ctx context.Context, startID uint64) ([]*gmailapi.History, error)
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
}

// Client 基于官方 Gmail API 的 Provider 实现。
//
// 所有出站调用经过速率限制器，避免触发提供方配额；网络超时交由
// HTTP 传输层默认值处理。
type Client struct {
	svc     *gmailapi.Service
	userID  string
	limiter *rate.Limiter
	log     *zap.Logger
}

// New 创建 Gmail 客户端。
//
// 凭证与令牌文件由外部的授权流程准备好；本服务只读取使用。
func New(ctx context.Context, cfg *config.GmailConfig, log *zap.Logger) (*Client, error) {
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	log.Info("gmail client ready",
		zap.String("user_id", cfg.UserID),
		zap.Float64("rate_per_second", cfg.RatePerSecond),
	)

	return &Client{
		svc:     svc,
		userID:  cfg.UserID,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		log:     log,
	}, nil
}

// GetProfile 获取账号概要（含当前 historyId，可用于诊断）。
func (c *Client) GetProfile(ctx context.Context) (*gmailapi.Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	profile, err := c.svc.Users.GetProfile(c.userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// ListHistory 返回自 startID 起的全部 messageAdded 历史条目。
func (c *Client) ListHistory(ctx context.Context, startID uint64) ([]*gmailapi.History, error) {
	var entries []*gmailapi.History
	pageToken := ""

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Users.History.List(c.userID).
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list history from %d: %w", startID, err)
		}

		entries = append(entries, resp.History...)
		if resp.NextPageToken == "" {
			return entries, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetMessage 拉取完整邮件。
func (c *Client) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := c.svc.Users.Messages.Get(c.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// ListMessageIDs 按查询返回最多 max 条邮件 ID。
func (c *Client) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.svc.Users.Messages.List(c.userID).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages %q: %w", query, err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// tokenFromFile 读取外部授权流程落盘的 OAuth 令牌。
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}
