package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// Pagination is the metadata block attached to every feed response
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// parsePositiveInt coerces query input to a positive integer, falling back to
// the default for anything unparsable or non-positive rather than erroring.
func parsePositiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// pageParams extracts (page, limit) from the request query
func pageParams(c *gin.Context) (page, limit int) {
	page = parsePositiveInt(c.Query("page"), defaultPage)
	limit = parsePositiveInt(c.Query("limit"), defaultLimit)
	return page, limit
}

// newPagination computes totalPages = ceil(total/limit)
func newPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}
}
