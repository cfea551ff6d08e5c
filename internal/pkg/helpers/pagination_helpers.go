package helpers

import (
	"math"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/models/dto"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultPage     = 1 // Default page is 1-based
)

// CalculateOffsetLimit calculates the offset and limit for SQL queries based on 1-based page index.
func CalculateOffsetLimit(page, size int) (offset uint64, limit int) {
	if size <= 0 || size > MaxPageSize {
		limit = DefaultPageSize
	} else {
		limit = size
	}

	if page < 1 {
		page = DefaultPage
	}

	offset = uint64((page - 1) * limit)
	return offset, limit
}

// TotalPages returns the page count for totalItems, at least 1.
func TotalPages(totalItems int64, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if totalItems <= 0 {
		return 1
	}
	return int(math.Ceil(float64(totalItems) / float64(size)))
}

// ParsePaginationParams extracts and validates pagination parameters from the request
func ParsePaginationParams(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	size, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	if err != nil || size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size
}

// NewPaginatedResponse builds the page envelope. next and previous are absolute
// links to the neighbouring pages of the current request, or nil at the edges.
func NewPaginatedResponse(c *gin.Context, results interface{}, totalItems int64, page, size int) dto.PaginatedResponse {
	totalPages := TotalPages(totalItems, size)
	resp := dto.PaginatedResponse{
		Count:      totalItems,
		Page:       page,
		TotalPages: totalPages,
		Results:    results,
	}
	if page < totalPages {
		resp.Next = pageLink(c, page+1)
	}
	if page > 1 {
		prev := page - 1
		if prev > totalPages {
			prev = totalPages
		}
		resp.Previous = pageLink(c, prev)
	}
	return resp
}

func pageLink(c *gin.Context, page int) *string {
	u := url.URL{
		Scheme: "http",
		Host:   c.Request.Host,
		Path:   c.Request.URL.Path,
	}
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}
	q := c.Request.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
