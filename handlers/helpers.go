package handlers

import (
	"context"
	"strconv"

	"grocery-delivery-api/logging"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 10

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// pagination reads ?page and ?limit with sane bounds.
func pagination(c *gin.Context) (page, limit, offset int) {
	page = parseIntDefault(c.Query("page"), 1)
	limit = parseIntDefault(c.Query("limit"), defaultPageSize)
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

func pageMeta(page, limit int, total int64) gin.H {
	pages := (total + int64(limit) - 1) / int64(limit)
	return gin.H{
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}

// advise logs a failed advisory-layer call (cache, search, blob, mail) and
// nothing else. These layers are pure optimizations; the request goes on.
func advise(ctx context.Context, action string, err error) {
	if err != nil {
		logging.FromContext(ctx).Warn(action, "error", err)
	}
}

func idKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
