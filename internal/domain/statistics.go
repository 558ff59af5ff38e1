package domain

import "time"

// StoreStats 表示有界存储的统计快照。
//
// 空存储时日期字段与 LastReceivedAt 为 null，TotalCount 为 0。
type StoreStats struct {
	TotalCount     int        `json:"totalCount"`
	NewestDate     *string    `json:"newestDate"`
	OldestDate     *string    `json:"oldestDate"`
	LastReceivedAt *time.Time `json:"lastReceivedAt"`
}
