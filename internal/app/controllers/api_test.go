package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/bootstrap"
	"github.com/yigit/scms/internal/config"
	"github.com/yigit/scms/internal/pkg/tokenstore"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	deps   *bootstrap.Dependencies
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Field   string          `json:"field"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newAPI(t *testing.T) *api {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiration = "1h"
	cfg.JWT.RefreshTokenExpiration = "24h"
	cfg.JWT.Issuer = "scms-test"
	cfg.CORS.AllowedOrigins = "*"
	cfg.CORS.MaxAge = "1h"
	cfg.Auth.BcryptCost = 4

	deps := bootstrap.BuildDependencies(cfg, memstore.New(), tokenstore.NewMemory(), zerolog.Nop())
	_, err := deps.Services.UserService.CreateUser(context.Background(), services.NewUserInput{
		Username:    "admin",
		Email:       "admin@example.com",
		Password:    "admin1234",
		Role:        models.RoleAdmin,
		IsSuperuser: true,
	})
	require.NoError(t, err)

	return &api{t: t, router: bootstrap.SetupRouter(cfg, deps, zerolog.Nop()), deps: deps}
}

func (a *api) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authData struct {
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Tokens tokens `json:"tokens"`
}

func (a *api) login(username, password string) tokens {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, code)
	return decode[authData](a.t, env.Data).Tokens
}

func (a *api) register(username string) tokens {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":         username,
		"email":            username + "@example.com",
		"password":         "student123",
		"password_confirm": "student123",
		"first_name":       "Test",
		"last_name":        "Student",
	})
	require.Equal(a.t, http.StatusCreated, code, env.Message)
	return decode[authData](a.t, env.Data).Tokens
}

type courseData struct {
	CourseID              string `json:"course_id"`
	CourseCode            string `json:"course_code"`
	Credits               int    `json:"credits"`
	IsActive              bool   `json:"is_active"`
	EnrolledStudentsCount int64  `json:"enrolled_students_count"`
}

func (a *api) createCourse(token, code string, credits int) courseData {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/courses", token, map[string]interface{}{
		"course_name":     "Course " + code,
		"course_code":     code,
		"course_duration": 12,
		"credits":         credits,
	})
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	return decode[courseData](a.t, env.Data)
}

type studentData struct {
	StudentID            string `json:"student_id"`
	StudentNumber        string `json:"student_number"`
	Status               string `json:"status"`
	TotalCreditsEnrolled int    `json:"total_credits_enrolled"`
	ActiveCourses        []struct {
		CourseCode string `json:"course_code"`
	} `json:"active_courses"`
}

func TestPing(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestRegisterCreatesStudentProfile(t *testing.T) {
	a := newAPI(t)
	tok := a.register("alice")

	code, env := a.do(http.MethodGet, "/api/v1/students/my-profile", tok.Access, nil)
	require.Equal(t, http.StatusOK, code)
	profile := decode[studentData](t, env.Data)
	assert.Regexp(t, `^STU\d{8}$`, profile.StudentNumber)
	assert.Equal(t, "active", profile.Status)
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)

	code, env = a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":         "root2",
		"email":            "root2@example.com",
		"password":         "admin1234",
		"password_confirm": "admin1234",
		"role":             "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)
}

func TestLoginFailures(t *testing.T) {
	a := newAPI(t)
	code, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTH_001", env.Error.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	a := newAPI(t)

	code, _ := a.do(http.MethodGet, "/api/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodGet, "/api/v1/courses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStudentCannotManageCourses(t *testing.T) {
	a := newAPI(t)
	tok := a.register("carol")

	code, env := a.do(http.MethodPost, "/api/v1/courses", tok.Access, map[string]interface{}{
		"course_name": "Hacking", "course_code": "HX1", "course_duration": 4,
	})
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTH_004", env.Error.Code)
}

func TestEnrollmentScenario(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	course := a.createCourse(admin.Access, "cs101", 4)
	assert.Equal(t, "CS101", course.CourseCode)

	student := a.register("dave")
	enrollPath := "/api/v1/courses/" + course.CourseID + "/enroll"

	code, env := a.do(http.MethodPost, enrollPath, student.Access, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Successfully enrolled in CS101", env.Message)

	code, env = a.do(http.MethodPost, enrollPath, student.Access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RES_004", env.Error.Code)

	code, env = a.do(http.MethodGet, "/api/v1/students/my-profile", student.Access, nil)
	require.Equal(t, http.StatusOK, code)
	profile := decode[studentData](t, env.Data)
	require.Len(t, profile.ActiveCourses, 1)
	assert.Equal(t, "CS101", profile.ActiveCourses[0].CourseCode)
	assert.Equal(t, 4, profile.TotalCreditsEnrolled)

	code, _ = a.do(http.MethodPost, "/api/v1/courses/"+course.CourseID+"/unenroll", student.Access, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = a.do(http.MethodGet, "/api/v1/students/my-profile", student.Access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[studentData](t, env.Data).ActiveCourses)

	code, env = a.do(http.MethodDelete, "/api/v1/courses/"+course.CourseID, admin.Access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RES_004", env.Error.Code)
}

func TestAdminEnrollRequiresStudentID(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	course := a.createCourse(admin.Access, "DS201", 4)

	code, env := a.do(http.MethodPost, "/api/v1/courses/"+course.CourseID+"/enroll", admin.Access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "student_id", env.Error.Field)
}

func TestStudentEnrollEndpoint(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	course := a.createCourse(admin.Access, "WD301", 3)

	student := a.register("erin")
	_, env := a.do(http.MethodGet, "/api/v1/students/my-profile", student.Access, nil)
	profile := decode[studentData](t, env.Data)

	path := "/api/v1/students/" + profile.StudentID + "/enroll"
	code, env := a.do(http.MethodPost, path, admin.Access, map[string]string{"course_id": course.CourseID})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = a.do(http.MethodGet, "/api/v1/students/"+profile.StudentID+"/enrollments?status=enrolled", admin.Access, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Count int `json:"count"`
	}](t, env.Data)
	assert.Equal(t, 1, list.Count)

	code, _ = a.do(http.MethodDelete, path, admin.Access, map[string]string{"course_id": course.CourseID})
	assert.Equal(t, http.StatusOK, code)

	code, env = a.do(http.MethodDelete, path, admin.Access, map[string]string{"course_id": course.CourseID})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RES_004", env.Error.Code)
}

func TestCourseListPagination(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	for _, code := range []string{"A1", "B2", "C3"} {
		a.createCourse(admin.Access, code, 3)
	}

	code, env := a.do(http.MethodGet, "/api/v1/courses?page_size=2&ordering=-course_code", admin.Access, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		Count      int64        `json:"count"`
		Next       *string      `json:"next"`
		Previous   *string      `json:"previous"`
		TotalPages int          `json:"total_pages"`
		Results    []courseData `json:"results"`
	}](t, env.Data)
	assert.Equal(t, int64(3), page.Count)
	assert.Equal(t, 2, page.TotalPages)
	assert.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "C3", page.Results[0].CourseCode)
}

func TestStudentsSeeOnlyActiveCourses(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	course := a.createCourse(admin.Access, "CY401", 4)
	code, _ := a.do(http.MethodPost, "/api/v1/courses/"+course.CourseID+"/deactivate", admin.Access, nil)
	require.Equal(t, http.StatusOK, code)

	student := a.register("frank")
	code, _ = a.do(http.MethodGet, "/api/v1/courses/"+course.CourseID, student.Access, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(http.MethodGet, "/api/v1/courses/"+course.CourseID, admin.Access, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestInvalidUUIDParam(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	code, env := a.do(http.MethodGet, "/api/v1/students/not-a-uuid", admin.Access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "id", env.Error.Field)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	a := newAPI(t)
	tok := a.register("grace")

	code, _ := a.do(http.MethodPost, "/api/v1/auth/logout", tok.Access, map[string]string{"refresh": tok.Refresh})
	require.Equal(t, http.StatusOK, code)

	code, _ = a.do(http.MethodGet, "/api/v1/auth/profile", tok.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": tok.Refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshRotation(t *testing.T) {
	a := newAPI(t)
	tok := a.register("heidi")

	code, env := a.do(http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": tok.Refresh})
	require.Equal(t, http.StatusOK, code)
	fresh := decode[tokens](t, env.Data)
	assert.NotEqual(t, tok.Refresh, fresh.Refresh)

	code, _ = a.do(http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": tok.Refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStudentListIsScopedToSelf(t *testing.T) {
	a := newAPI(t)
	a.register("ivan")
	judy := a.register("judy")

	code, env := a.do(http.MethodGet, "/api/v1/students", judy.Access, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		Count int64 `json:"count"`
	}](t, env.Data)
	assert.Equal(t, int64(1), page.Count)

	admin := a.login("admin", "admin1234")
	code, env = a.do(http.MethodGet, "/api/v1/students", admin.Access, nil)
	require.Equal(t, http.StatusOK, code)
	page = decode[struct {
		Count int64 `json:"count"`
	}](t, env.Data)
	assert.Equal(t, int64(2), page.Count)
}

func TestEnrollmentTransitionsAreAdminOnly(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "admin1234")
	course := a.createCourse(admin.Access, "MAD501", 3)
	student := a.register("ken")

	code, env := a.do(http.MethodPost, "/api/v1/courses/"+course.CourseID+"/enroll", student.Access, nil)
	require.Equal(t, http.StatusOK, code)

	_, env = a.do(http.MethodGet, "/api/v1/students/my-profile", student.Access, nil)
	profile := decode[studentData](t, env.Data)
	_, env = a.do(http.MethodGet, "/api/v1/students/"+profile.StudentID+"/enrollments", student.Access, nil)
	list := decode[struct {
		Results []struct {
			EnrollmentID string `json:"enrollment_id"`
		} `json:"results"`
	}](t, env.Data)
	require.Len(t, list.Results, 1)
	completePath := "/api/v1/enrollments/" + list.Results[0].EnrollmentID + "/complete"

	code, _ = a.do(http.MethodPost, completePath, student.Access, map[string]string{"grade": "A"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.do(http.MethodPost, completePath, admin.Access, map[string]string{"grade": "A"})
	require.Equal(t, http.StatusOK, code, env.Message)
	done := decode[struct {
		Status        string `json:"status"`
		CreditsEarned *int   `json:"credits_earned"`
	}](t, env.Data)
	assert.Equal(t, "completed", done.Status)
	require.NotNil(t, done.CreditsEarned)
	assert.Equal(t, 3, *done.CreditsEarned)
}
