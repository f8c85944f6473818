package models

// UserStorage 单个用户的存储占用
type UserStorage struct {
	UserID    uint64 `json:"userId"`
	Email     string `json:"email"`
	FileCount int64  `json:"fileCount"`
	Bytes     int64  `json:"bytes"`
}

// SystemStats 管理后台的系统统计
type SystemStats struct {
	Users          int64         `json:"users"`
	Admins         int64         `json:"admins"`
	ActiveUsers    int64         `json:"activeUsers"`
	DemoUsers      int64         `json:"demoUsers"`
	Files          int64         `json:"files"`
	TotalBytes     int64         `json:"totalBytes"`
	Shares         int64         `json:"shares"`
	ActiveShares   int64         `json:"activeShares"`
	TotalDownloads int64         `json:"totalDownloads"`
	Sessions       int64         `json:"sessions"`
	TopUploaders   []UserStorage `json:"topUploaders"`
}
