package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// 列表接口统一从query读取page/page_size
// 后台列表（员工、租户、审计日志）默认20条，上限100条
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Params 解析后的分页参数
type Params struct {
	Page     int
	PageSize int
}

// Parse 从请求query解析分页参数，非法或越界取值收敛到边界
func Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	return Params{Page: page, PageSize: size}
}
