package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/controllers"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	userController *controllers.UserController,
	courseController *controllers.CourseController,
	studentController *controllers.StudentController,
	enrollmentController *controllers.EnrollmentController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/token/refresh", authController.RefreshToken)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		account := authenticated.Group("/auth")
		{
			account.POST("/logout", authController.Logout)
			account.GET("/profile", userController.GetProfile)
			account.PUT("/profile", userController.UpdateProfile)
			account.PATCH("/profile", userController.UpdateProfile)
			account.POST("/change-password", userController.ChangePassword)
			account.GET("/users", userController.ListUsers)
		}

		courses := authenticated.Group("/courses")
		{
			courses.GET("", courseController.ListCourses)
			courses.GET("/active", courseController.ListActiveCourses)
			courses.GET("/:id", courseController.GetCourse)
			courses.GET("/:id/students", courseController.CourseStudents)
			courses.POST("/:id/enroll", courseController.Enroll)
			courses.POST("/:id/unenroll", courseController.Unenroll)

			coursesAdmin := courses.Group("")
			coursesAdmin.Use(authMiddleware.AdminRequired())
			{
				coursesAdmin.POST("", courseController.CreateCourse)
				coursesAdmin.PUT("/:id", courseController.ReplaceCourse)
				coursesAdmin.PATCH("/:id", courseController.PatchCourse)
				coursesAdmin.DELETE("/:id", courseController.DeleteCourse)
				coursesAdmin.POST("/:id/activate", courseController.ActivateCourse)
				coursesAdmin.POST("/:id/deactivate", courseController.DeactivateCourse)
			}
		}

		// Ownership checks for students happen in the service policy
		students := authenticated.Group("/students")
		{
			students.GET("", studentController.ListStudents)
			students.GET("/active", studentController.ListActiveStudents)
			students.GET("/by-course", studentController.StudentsByCourse)
			students.GET("/my-profile", studentController.MyProfile)
			students.PUT("/my-profile", studentController.UpdateMyProfile)
			students.PATCH("/my-profile", studentController.UpdateMyProfile)
			students.GET("/:id", studentController.GetStudent)
			students.PUT("/:id", studentController.UpdateStudent)
			students.PATCH("/:id", studentController.UpdateStudent)
			students.POST("/:id/change-status", studentController.ChangeStatus)
			students.POST("/:id/enroll", studentController.EnrollInCourse)
			students.DELETE("/:id/enroll", studentController.UnenrollFromCourse)
			students.GET("/:id/enrollments", studentController.Enrollments)

			studentsAdmin := students.Group("")
			studentsAdmin.Use(authMiddleware.AdminRequired())
			{
				studentsAdmin.POST("", studentController.CreateStudent)
				studentsAdmin.DELETE("/:id", studentController.DeleteStudent)
			}
		}

		enrollments := authenticated.Group("/enrollments")
		enrollments.Use(authMiddleware.AdminRequired())
		{
			enrollments.POST("/:id/complete", enrollmentController.Complete)
			enrollments.POST("/:id/status", enrollmentController.ChangeStatus)
		}
	}

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, ""))
	})
}
