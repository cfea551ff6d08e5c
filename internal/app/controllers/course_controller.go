package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/middleware"
	"github.com/yigit/scms/internal/pkg/helpers"
)

var courseOrderingFields = []string{"course_name", "course_code", "course_duration", "credits", "is_active", "created_at", "updated_at"}

// CourseController handles course catalog endpoints
type CourseController struct {
	courseService     services.CourseService
	enrollmentService services.EnrollmentService
}

// NewCourseController creates a new CourseController
func NewCourseController(courseService services.CourseService, enrollmentService services.EnrollmentService) *CourseController {
	return &CourseController{
		courseService:     courseService,
		enrollmentService: enrollmentService,
	}
}

// ListCourses returns a page of courses
// @Summary List courses
// @Description Students only see active courses
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param ordering query string false "Sort field, prefix with - for descending" default(course_name)
// @Param search query string false "Search name, code and description"
// @Param is_active query bool false "Filter by active flag"
// @Param course_duration query int false "Filter by duration in weeks"
// @Param credits query int false "Filter by credits"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{results=[]dto.CourseResponse}} "Courses"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	filter := repositories.CourseFilter{
		Search:   strings.TrimSpace(ctx.Query("search")),
		IsActive: queryBool(ctx, "is_active"),
		Duration: queryInt(ctx, "course_duration"),
		Credits:  queryInt(ctx, "credits"),
		Ordering: parseOrdering(ctx, courseOrderingFields, "course_name"),
		Page:     repositories.Page{Offset: offset, Limit: limit},
	}

	courses, total, counts, err := c.courseService.ListCourses(ctx.Request.Context(), middleware.CurrentActor(ctx), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(
		helpers.NewPaginatedResponse(ctx, dto.FromCourses(courses, counts), total, page, size), ""))
}

// CreateCourse adds a course to the catalog
// @Summary Create course
// @Description Admin only. Course code is upper-cased; credits default to 3.
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CourseRequest true "Course"
// @Success 201 {object} dto.APIResponse{data=dto.CourseResponse} "Course created"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req dto.CourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	course, err := c.courseService.CreateCourse(ctx.Request.Context(), middleware.CurrentActor(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.FromCourse(course, 0), "Course created successfully"))
}

// ListActiveCourses returns all active courses
// @Summary List active courses
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListResponse{results=[]dto.CourseResponse}} "Active courses"
// @Router /courses/active [get]
func (c *CourseController) ListActiveCourses(ctx *gin.Context) {
	courses, counts, err := c.courseService.ListActive(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewListResponse(dto.FromCourses(courses, counts)), ""))
}

// GetCourse returns one course with its active roster
// @Summary Get course
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.CourseDetailResponse} "Course"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}

	detail, err := c.courseService.GetCourseDetail(ctx.Request.Context(), middleware.CurrentActor(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CourseDetailResponse{
		CourseResponse: dto.FromCourse(detail.Course, detail.Enrolled),
		Students:       dto.FromStudentsBasic(detail.Students),
	}, ""))
}

// ReplaceCourse replaces every course field
// @Summary Replace course
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param request body dto.CourseRequest true "Course"
// @Success 200 {object} dto.APIResponse{data=dto.CourseResponse} "Course updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id} [put]
func (c *CourseController) ReplaceCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}
	var req dto.CourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	course, enrolled, err := c.courseService.ReplaceCourse(ctx.Request.Context(), middleware.CurrentActor(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromCourse(course, enrolled), "Course updated successfully"))
}

// PatchCourse updates the given course fields
// @Summary Partially update course
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param request body dto.CoursePatchRequest true "Course fields"
// @Success 200 {object} dto.APIResponse{data=dto.CourseResponse} "Course updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id} [patch]
func (c *CourseController) PatchCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}
	var req dto.CoursePatchRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	course, enrolled, err := c.courseService.PatchCourse(ctx.Request.Context(), middleware.CurrentActor(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromCourse(course, enrolled), "Course updated successfully"))
}

// DeleteCourse removes a course without ledger entries
// @Summary Delete course
// @Description Fails while any enrollment, including withdrawn ones, references the course
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 204 "Course deleted"
// @Failure 400 {object} dto.ErrorResponse "Course has enrollments"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}

	if err := c.courseService.DeleteCourse(ctx.Request.Context(), middleware.CurrentActor(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// CourseStudents lists the active students of a course
// @Summary Course roster
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListResponse{results=[]dto.StudentBasicResponse}} "Students"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id}/students [get]
func (c *CourseController) CourseStudents(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}

	students, err := c.courseService.Roster(ctx.Request.Context(), middleware.CurrentActor(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewListResponse(dto.FromStudentsBasic(students)), ""))
}

func (c *CourseController) resolveStudent(ctx *gin.Context) (uuid.UUID, bool) {
	var req dto.CourseEnrollRequest
	if !middleware.BindOptionalJSON(ctx, &req) {
		return uuid.Nil, false
	}
	studentID, err := c.enrollmentService.ResolveStudent(ctx.Request.Context(), middleware.CurrentActor(ctx), req.StudentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return uuid.Nil, false
	}
	return studentID, true
}

// Enroll enrolls a student in the course
// @Summary Enroll in course
// @Description Students enroll themselves; admins must pass student_id. Re-enrolling a withdrawn entry reuses it.
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param request body dto.CourseEnrollRequest false "Student to enroll"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentResultResponse} "Enrolled"
// @Failure 400 {object} dto.ErrorResponse "Already enrolled"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found or is not active"
// @Router /courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	courseID, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}
	studentID, ok := c.resolveStudent(ctx)
	if !ok {
		return
	}

	result, err := c.enrollmentService.Enroll(ctx.Request.Context(), middleware.CurrentActor(ctx), studentID, courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	resp := dto.FromEnrollmentResult(result.Student, result.Course, result.Enrollment)
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, resp.Message))
}

// Unenroll withdraws a student from the course
// @Summary Unenroll from course
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param request body dto.CourseEnrollRequest false "Student to unenroll"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentResultResponse} "Unenrolled"
// @Failure 400 {object} dto.ErrorResponse "Not enrolled"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /courses/{id}/unenroll [post]
func (c *CourseController) Unenroll(ctx *gin.Context) {
	courseID, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}
	studentID, ok := c.resolveStudent(ctx)
	if !ok {
		return
	}

	result, err := c.enrollmentService.Unenroll(ctx.Request.Context(), middleware.CurrentActor(ctx), studentID, courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	resp := dto.FromEnrollmentResult(result.Student, result.Course, result.Enrollment)
	resp.Message = "Successfully unenrolled from " + result.Course.CourseCode
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, resp.Message))
}

// ActivateCourse marks a course active
// @Summary Activate course
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Activated"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id}/activate [post]
func (c *CourseController) ActivateCourse(ctx *gin.Context) {
	c.setActive(ctx, true)
}

// DeactivateCourse marks a course inactive
// @Summary Deactivate course
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Deactivated"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /courses/{id}/deactivate [post]
func (c *CourseController) DeactivateCourse(ctx *gin.Context) {
	c.setActive(ctx, false)
}

func (c *CourseController) setActive(ctx *gin.Context, active bool) {
	id, ok := parseUUIDParam(ctx, "id", "course")
	if !ok {
		return
	}

	course, err := c.courseService.SetActive(ctx.Request.Context(), middleware.CurrentActor(ctx), id, active)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	state := "activated"
	if !active {
		state = "deactivated"
	}
	msg := "Course " + course.CourseCode + " " + state
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: msg}, msg))
}
