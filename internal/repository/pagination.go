package repository

import "gorm.io/gorm"

// maxPageSize 单页上限，与 HTTP 层保持一致
const maxPageSize = 100

// paginate 分页 scope，pageSize<=0 时不分页
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return query
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		if page < 1 {
			page = 1
		}
		return query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
}
