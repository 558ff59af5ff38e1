package httptransport

import (
	"mailfeed/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	storage.ErrRecordNotFound: "邮件记录不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"
	MsgInvalidLimit   = "limit 参数格式无效"

	// 消息流相关
	MsgRecordNotFound  = "邮件记录不存在"
	MsgFeedListFailed  = "获取邮件列表失败"
	MsgStatsGetFailed  = "获取统计数据失败"
	MsgFeedClearFailed = "清空邮件流失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
