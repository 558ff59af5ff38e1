package domain

import "time"

// BodyLimit 是入库正文的硬性截断长度（字符数），不随调用方配置。
const BodyLimit = 1000

// MessageRecord 表示一条归一化后的邮件记录。
//
// ID 由邮件提供方分配，入库后不可变；HistoryID 记录产生该记录的通知游标。
type MessageRecord struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Date       string    `json:"date"` // 提供方格式的日期头，原样保存
	Snippet    string    `json:"snippet"`
	Body       string    `json:"body,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
	HistoryID  string    `json:"historyId"`
}

// TruncateBody 按字符（rune）截断正文到 BodyLimit，返回原文的严格前缀。
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= BodyLimit {
		return body
	}
	return string(runes[:BodyLimit])
}
