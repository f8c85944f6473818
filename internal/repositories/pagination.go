package repositories

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage 规范化分页参数，返回 offset 和 limit
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return (page - 1) * pageSize, pageSize
}
