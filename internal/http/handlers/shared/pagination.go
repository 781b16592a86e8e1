package shared

import (
	"strconv"

	"github.com/bannerhub/internal/http/response"

	"github.com/gin-gonic/gin"
)

// DefaultPageSize 默认每页条数
const DefaultPageSize = 10

// NormalizePagination 归一化分页参数。
func NormalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// ParsePagination 读取 page 与 limit（兼容 page_size）
func ParsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	pageSize, _ := strconv.Atoi(raw)
	return NormalizePagination(page, pageSize)
}

// BuildPagination 构造分页信息
func BuildPagination(page, pageSize int, total int64) response.Pagination {
	return response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}
