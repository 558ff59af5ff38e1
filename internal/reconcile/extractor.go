package reconcile

import (
	"encoding/base64"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"mailfeed/backend/internal/domain"
)

// Extract 将提供方的原始邮件转换为归一化记录。
//
// 提取从不失败：缺失的头部得到空字符串，缺失的正文得到空正文，
// 逐字段优雅降级。存储相关字段（ReceivedAt、HistoryID）由管道补齐。
func Extract(msg *gmailapi.Message) domain.MessageRecord {
	record := domain.MessageRecord{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}

	if msg.Payload == nil {
		return record
	}

	record.Subject = header(msg.Payload.Headers, "Subject")
	record.From = header(msg.Payload.Headers, "From")
	record.To = header(msg.Payload.Headers, "To")
	record.Date = header(msg.Payload.Headers, "Date")
	record.Body = domain.TruncateBody(extractBody(msg.Payload))

	return record
}

// header 大小写不敏感地查找头部值，缺失返回空字符串。
func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody 按优先级提取正文：
//
//	a) 扁平正文负载，按传输编码（base64url）解码；
//	b) 不存在时，深度优先找到的第一个 text/plain 部件，同样解码；
//	c) 两者都缺失时正文为空。
func extractBody(payload *gmailapi.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBodyData(payload.Body.Data)
	}

	if part := firstPlainTextPart(payload.Parts); part != nil {
		return decodeBodyData(part.Body.Data)
	}

	return ""
}

// firstPlainTextPart 深度优先返回第一个带数据的 text/plain 部件。
func firstPlainTextPart(parts []*gmailapi.MessagePart) *gmailapi.MessagePart {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
			return part
		}
		if nested := firstPlainTextPart(part.Parts); nested != nil {
			return nested
		}
	}
	return nil
}

// decodeBodyData 解码 base64url 正文数据，解码失败时返回空字符串。
func decodeBodyData(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// 部分客户端省略填充
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
