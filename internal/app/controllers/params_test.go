package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/repositories"
)

func testContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return ctx, w
}

func TestParseOrdering(t *testing.T) {
	allowed := []string{"course_name", "credits"}

	tests := []struct {
		query string
		want  repositories.Ordering
	}{
		{"/", repositories.Ordering{Field: "course_name"}},
		{"/?ordering=credits", repositories.Ordering{Field: "credits"}},
		{"/?ordering=-credits", repositories.Ordering{Field: "credits", Desc: true}},
		{"/?ordering=-password", repositories.Ordering{Field: "course_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ctx, _ := testContext(tt.query)
			assert.Equal(t, tt.want, parseOrdering(ctx, allowed, "course_name"))
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	ctx, _ := testContext("/?is_active=true&credits=4&bad=x&course_id=nope")

	active := queryBool(ctx, "is_active")
	require.NotNil(t, active)
	assert.True(t, *active)
	assert.Nil(t, queryBool(ctx, "bad"))
	assert.Nil(t, queryBool(ctx, "missing"))

	credits := queryInt(ctx, "credits")
	require.NotNil(t, credits)
	assert.Equal(t, 4, *credits)
	assert.Nil(t, queryInt(ctx, "bad"))

	id, ok := queryUUID(ctx, "course_id")
	assert.False(t, ok)
	assert.Nil(t, id)

	id, ok = queryUUID(ctx, "missing")
	assert.True(t, ok)
	assert.Nil(t, id)
}

func TestParseUUIDParam(t *testing.T) {
	ctx, w := testContext("/")
	ctx.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	_, ok := parseUUIDParam(ctx, "id", "course")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid course ID")
}
