package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TestMarkerPrefix 标记合成测试通知的游标前缀，带该前缀的通知不触发在线对账。
const TestMarkerPrefix = "test-"

var (
	// ErrMissingEmailAddress 通知负载缺少账户地址
	ErrMissingEmailAddress = errors.New("notification payload missing emailAddress")
	// ErrMissingHistoryID 通知负载缺少历史游标
	ErrMissingHistoryID = errors.New("notification payload missing historyId")
)

// PushMessage 是推送信封中的消息部分，Data 为 base64 编码的变更事件。
type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// PushEnvelope 是推送端 POST 过来的完整信封。
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription,omitempty"`
}

// Cursor 是提供方历史游标。线上负载中既可能是 JSON 字符串也可能是
// JSON 数字，统一按字符串保存。
type Cursor string

// UnmarshalJSON 兼容字符串与数字两种游标编码。
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cursor must be a string or number: %w", err)
	}
	*c = Cursor(n.String())
	return nil
}

func (c Cursor) String() string {
	return string(c)
}

// IsTestMarker 判断游标是否带合成测试前缀。
func (c Cursor) IsTestMarker() bool {
	return strings.HasPrefix(string(c), TestMarkerPrefix)
}

// ChangeEvent 是解码后的邮箱变更事件。
type ChangeEvent struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    Cursor `json:"historyId"`
}

// DecodePushData 解码推送消息的 data 字段。
//
// 推送端对 base64 变体不完全一致，标准字母表解不开时再按 URL 安全
// 字母表兜底一次。
func DecodePushData(data string) (*ChangeEvent, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
	}

	var event ChangeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("invalid change event payload: %w", err)
	}
	if event.EmailAddress == "" {
		return nil, ErrMissingEmailAddress
	}
	if event.HistoryID == "" {
		return nil, ErrMissingHistoryID
	}
	return &event, nil
}

// EncodePushData 按推送端的方式编码变更事件，主要供测试构造负载。
func EncodePushData(event *ChangeEvent) (string, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal change event: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
