package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
)

// parseUUIDParam reads a uuid path parameter, writing a 400 response when it is malformed
func parseUUIDParam(ctx *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+label+" ID").
			WithField(name).
			WithDetails(label + " ID must be a valid UUID")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return uuid.Nil, false
	}
	return id, true
}

// parseOrdering reads the ordering query parameter. A leading "-" sorts descending;
// fields outside allowed fall back to def.
func parseOrdering(ctx *gin.Context, allowed []string, def string) repositories.Ordering {
	raw := strings.TrimSpace(ctx.Query("ordering"))
	desc := strings.HasPrefix(raw, "-")
	field := strings.TrimPrefix(raw, "-")
	for _, a := range allowed {
		if a == field {
			return repositories.Ordering{Field: field, Desc: desc}
		}
	}
	return repositories.Ordering{Field: def}
}

// queryBool parses an optional boolean query parameter
func queryBool(ctx *gin.Context, name string) *bool {
	raw, ok := ctx.GetQuery(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// queryInt parses an optional integer query parameter
func queryInt(ctx *gin.Context, name string) *int {
	raw, ok := ctx.GetQuery(name)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

// queryUUID parses an optional uuid query parameter. The second result is false when a value was given but malformed.
func queryUUID(ctx *gin.Context, name string) (*uuid.UUID, bool) {
	raw, ok := ctx.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
