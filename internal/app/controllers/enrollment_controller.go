package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/middleware"
)

// EnrollmentController handles ledger transitions
type EnrollmentController struct {
	enrollmentService services.EnrollmentService
}

// NewEnrollmentController creates a new EnrollmentController
func NewEnrollmentController(enrollmentService services.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{enrollmentService: enrollmentService}
}

// Complete marks an enrollment completed
// @Summary Complete enrollment
// @Description Admin only. Records the optional grade and awards the course credits.
// @Tags enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param request body dto.CompleteEnrollmentRequest false "Grade"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentResponse} "Enrollment completed"
// @Failure 400 {object} dto.ErrorResponse "Invalid grade"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Enrollment not found"
// @Router /enrollments/{id}/complete [post]
func (c *EnrollmentController) Complete(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "enrollment")
	if !ok {
		return
	}
	var req dto.CompleteEnrollmentRequest
	if !middleware.BindOptionalJSON(ctx, &req) {
		return
	}

	e, err := c.enrollmentService.Complete(ctx.Request.Context(), middleware.CurrentActor(ctx), id, req.Grade)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromEnrollment(e), "Enrollment completed"))
}

// ChangeStatus moves an enrollment to another status
// @Summary Change enrollment status
// @Tags enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param request body dto.EnrollmentStatusRequest true "Status and optional grade"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentResponse} "Status changed"
// @Failure 400 {object} dto.ErrorResponse "Invalid status or grade"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Enrollment not found"
// @Router /enrollments/{id}/status [post]
func (c *EnrollmentController) ChangeStatus(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "enrollment")
	if !ok {
		return
	}
	var req dto.EnrollmentStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	e, err := c.enrollmentService.ChangeStatus(ctx.Request.Context(), middleware.CurrentActor(ctx), id, req.Status, req.Grade)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromEnrollment(e), "Enrollment status changed to "+string(e.Status)))
}
