package services

import (
	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/tokenstore"
)

// Services holds every service of the application
type Services struct {
	Policy            *authz.Policy
	AuthService       *AuthService
	UserService       UserService
	StudentService    StudentService
	CourseService     CourseService
	EnrollmentService EnrollmentService
}

// Options configures NewServices
type Options struct {
	JWTService *auth.JWTService
	Denylist   tokenstore.Denylist
	BcryptCost int
}

// NewServices wires all services on top of store
func NewServices(store repositories.Store, opts Options, logger zerolog.Logger) *Services {
	policy := authz.NewPolicy()
	denylist := opts.Denylist
	if denylist == nil {
		denylist = tokenstore.NewMemory()
	}

	userService := NewUserService(store, policy, opts.BcryptCost, logger)
	studentService := NewStudentService(store, userService, policy, logger)

	return &Services{
		Policy:            policy,
		AuthService:       NewAuthService(store, userService, studentService, opts.JWTService, denylist, logger),
		UserService:       userService,
		StudentService:    studentService,
		CourseService:     NewCourseService(store, policy, logger),
		EnrollmentService: NewEnrollmentService(store, policy, logger),
	}
}
