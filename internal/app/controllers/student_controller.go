package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/middleware"
	"github.com/yigit/scms/internal/pkg/helpers"
)

var studentOrderingFields = []string{"student_number", "enrollment_date", "status", "created_at", "updated_at", "username", "last_name"}

// StudentController handles student profile endpoints
type StudentController struct {
	studentService    services.StudentService
	enrollmentService services.EnrollmentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService, enrollmentService services.EnrollmentService) *StudentController {
	return &StudentController{
		studentService:    studentService,
		enrollmentService: enrollmentService,
	}
}

func studentResponse(d *services.StudentDetail) dto.StudentResponse {
	return dto.FromStudent(d.Student, d.CourseCounts)
}

func invalidQuery(ctx *gin.Context, field, message string) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, message).WithField(field)
	ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
}

// ListStudents returns a page of student profiles
// @Summary List students
// @Description Students only see their own profile
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param ordering query string false "Sort field, prefix with - for descending" default(student_number)
// @Param search query string false "Search number, username, name and email"
// @Param status query string false "Filter by status" Enums(active, inactive, graduated, dropped)
// @Param course query string false "Filter by course ID"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{results=[]dto.StudentBasicResponse}} "Students"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	courseID, ok := queryUUID(ctx, "course")
	if !ok {
		invalidQuery(ctx, "course", "course must be a valid UUID")
		return
	}

	filter := repositories.StudentFilter{
		Search:   strings.TrimSpace(ctx.Query("search")),
		Status:   models.StudentStatus(ctx.Query("status")),
		CourseID: courseID,
		Ordering: parseOrdering(ctx, studentOrderingFields, "student_number"),
		Page:     repositories.Page{Offset: offset, Limit: limit},
	}

	students, total, err := c.studentService.ListStudents(ctx.Request.Context(), middleware.CurrentActor(ctx), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(
		helpers.NewPaginatedResponse(ctx, dto.FromStudentsBasic(students), total, page, size), ""))
}

// CreateStudent creates a student user and profile
// @Summary Create student
// @Description Admin only. Creates the user, the profile and optionally the first enrollment in one transaction.
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStudentRequest true "Student"
// @Success 201 {object} dto.APIResponse{data=dto.StudentResponse} "Student created"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	var req dto.CreateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	detail, err := c.studentService.CreateWithUser(ctx.Request.Context(), middleware.CurrentActor(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(studentResponse(detail), "Student created successfully"))
}

// ListActiveStudents returns active student profiles
// @Summary List active students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListResponse{results=[]dto.StudentResponse}} "Active students"
// @Router /students/active [get]
func (c *StudentController) ListActiveStudents(ctx *gin.Context) {
	details, err := c.studentService.ListActive(ctx.Request.Context(), middleware.CurrentActor(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	out := make([]dto.StudentResponse, 0, len(details))
	for _, d := range details {
		out = append(out, studentResponse(d))
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewListResponse(out), ""))
}

// StudentsByCourse lists students holding an enrolled or completed entry for a course
// @Summary Students by course
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param course_id query string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.StudentsByCourseResponse} "Students"
// @Failure 400 {object} dto.ErrorResponse "course_id missing or invalid"
// @Router /students/by-course [get]
func (c *StudentController) StudentsByCourse(ctx *gin.Context) {
	courseID, ok := queryUUID(ctx, "course_id")
	if !ok {
		invalidQuery(ctx, "course_id", "course_id must be a valid UUID")
		return
	}
	if courseID == nil {
		invalidQuery(ctx, "course_id", "course_id parameter is required")
		return
	}

	students, err := c.studentService.ListByCourse(ctx.Request.Context(), middleware.CurrentActor(ctx), *courseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.StudentsByCourseResponse{
		CourseID:      *courseID,
		StudentsCount: len(students),
		Students:      dto.FromStudentsBasic(students),
	}, ""))
}

// MyProfile returns the caller's student profile, creating it on first access
// @Summary Get own student profile
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Profile"
// @Success 201 {object} dto.APIResponse{data=dto.StudentResponse} "Profile created"
// @Failure 404 {object} dto.ErrorResponse "No student profile"
// @Router /students/my-profile [get]
func (c *StudentController) MyProfile(ctx *gin.Context) {
	detail, created, err := c.studentService.MyProfile(ctx.Request.Context(), middleware.CurrentActor(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if created {
		ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(studentResponse(detail), "Student profile created automatically"))
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(studentResponse(detail), ""))
}

// UpdateMyProfile updates the caller's student profile
// @Summary Update own student profile
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateStudentRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Profile updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden field"
// @Router /students/my-profile [put]
// @Router /students/my-profile [patch]
func (c *StudentController) UpdateMyProfile(ctx *gin.Context) {
	var req dto.UpdateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	detail, err := c.studentService.UpdateMyProfile(ctx.Request.Context(), middleware.CurrentActor(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(studentResponse(detail), "Profile updated successfully"))
}

// GetStudent returns one student profile
// @Summary Get student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Student"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}

	detail, err := c.studentService.GetStudent(ctx.Request.Context(), middleware.CurrentActor(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(studentResponse(detail), ""))
}

// UpdateStudent updates a student profile
// @Summary Update student
// @Description student_number and enrollment_date may only be changed by an admin
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param request body dto.UpdateStudentRequest true "Student fields"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Student updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [put]
// @Router /students/{id} [patch]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}
	var req dto.UpdateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	detail, err := c.studentService.UpdateStudent(ctx.Request.Context(), middleware.CurrentActor(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(studentResponse(detail), "Student updated successfully"))
}

// DeleteStudent removes a student together with its user account
// @Summary Delete student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204 "Student deleted"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}

	if err := c.studentService.DeleteStudent(ctx.Request.Context(), middleware.CurrentActor(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ChangeStatus sets a student's status
// @Summary Change student status
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param request body dto.ChangeStudentStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.StudentActionResponse} "Status changed"
// @Failure 400 {object} dto.ErrorResponse "Invalid status"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id}/change-status [post]
func (c *StudentController) ChangeStatus(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}
	var req dto.ChangeStudentStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	detail, err := c.studentService.ChangeStatus(ctx.Request.Context(), middleware.CurrentActor(ctx), id, req.Status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	resp := studentResponse(detail)
	msg := "Student status changed to " + resp.Status
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.StudentActionResponse{Message: msg, Student: &resp}, msg))
}

// EnrollInCourse enrolls the student in a course
// @Summary Enroll student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param request body dto.StudentCourseRequest true "Course"
// @Success 201 {object} dto.APIResponse{data=dto.StudentActionResponse} "Enrolled"
// @Failure 400 {object} dto.ErrorResponse "Already enrolled"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Course not found or is not active"
// @Router /students/{id}/enroll [post]
func (c *StudentController) EnrollInCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}
	var req dto.StudentCourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.enrollmentService.Enroll(ctx.Request.Context(), middleware.CurrentActor(ctx), id, req.CourseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	enrollment := dto.FromEnrollment(result.Enrollment)
	msg := "Successfully enrolled in " + result.Course.CourseName
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.StudentActionResponse{Message: msg, Enrollment: &enrollment}, msg))
}

// UnenrollFromCourse withdraws the student from a course
// @Summary Unenroll student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param request body dto.StudentCourseRequest true "Course"
// @Success 200 {object} dto.APIResponse{data=dto.StudentActionResponse} "Unenrolled"
// @Failure 400 {object} dto.ErrorResponse "Not enrolled"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /students/{id}/enroll [delete]
func (c *StudentController) UnenrollFromCourse(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}
	var req dto.StudentCourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.enrollmentService.Unenroll(ctx.Request.Context(), middleware.CurrentActor(ctx), id, req.CourseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	enrollment := dto.FromEnrollment(result.Enrollment)
	msg := "Successfully unenrolled from " + result.Course.CourseName
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.StudentActionResponse{Message: msg, Enrollment: &enrollment}, msg))
}

// Enrollments returns the student's ledger entries
// @Summary Student enrollment history
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param status query string false "Filter by status" Enums(enrolled, completed, withdrawn, failed, suspended)
// @Success 200 {object} dto.APIResponse{data=dto.ListResponse{results=[]dto.EnrollmentResponse}} "Enrollments"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id}/enrollments [get]
func (c *StudentController) Enrollments(ctx *gin.Context) {
	id, ok := parseUUIDParam(ctx, "id", "student")
	if !ok {
		return
	}

	list, err := c.studentService.ListEnrollments(ctx.Request.Context(), middleware.CurrentActor(ctx), id, ctx.Query("status"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewListResponse(dto.FromEnrollments(list)), ""))
}
