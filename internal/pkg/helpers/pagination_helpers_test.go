package helpers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestParsePaginationParams(t *testing.T) {
	page, size := ParsePaginationParams(newContext("/api/v1/courses/"))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = ParsePaginationParams(newContext("/api/v1/courses/?page=3&page_size=500"))
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageSize, size)

	page, size = ParsePaginationParams(newContext("/api/v1/courses/?page=-1&page_size=abc"))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)
}

func TestCalculateOffsetLimit(t *testing.T) {
	offset, limit := CalculateOffsetLimit(3, 20)
	assert.Equal(t, uint64(40), offset)
	assert.Equal(t, 20, limit)
}

func TestNewPaginatedResponseLinks(t *testing.T) {
	c := newContext("http://example.com/api/v1/courses/?page=2&page_size=10&search=cs")
	resp := NewPaginatedResponse(c, []int{1}, 25, 2, 10)

	assert.Equal(t, int64(25), resp.Count)
	assert.Equal(t, 3, resp.TotalPages)
	require.NotNil(t, resp.Next)
	assert.Equal(t, "http://example.com/api/v1/courses/?page=3&page_size=10&search=cs", *resp.Next)
	require.NotNil(t, resp.Previous)
	assert.Equal(t, "http://example.com/api/v1/courses/?page_size=10&search=cs", *resp.Previous)
}

func TestNewPaginatedResponseSinglePage(t *testing.T) {
	resp := NewPaginatedResponse(newContext("/api/v1/courses/"), []int{}, 0, 1, 20)
	assert.Nil(t, resp.Next)
	assert.Nil(t, resp.Previous)
	assert.Equal(t, 1, resp.TotalPages)
}
