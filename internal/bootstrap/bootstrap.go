// Package bootstrap assembles the application from configuration: logger, database, services and router.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yigit/scms/docs" // Import generated swagger docs
	appControllers "github.com/yigit/scms/internal/app/controllers"
	appMigrations "github.com/yigit/scms/internal/app/migrations"
	appRepos "github.com/yigit/scms/internal/app/repositories"
	appRoutes "github.com/yigit/scms/internal/app/routes"
	appServices "github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/config"
	"github.com/yigit/scms/internal/db"
	appMiddleware "github.com/yigit/scms/internal/middleware"
	pkgAuth "github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/helpers"
	"github.com/yigit/scms/internal/pkg/logger"
	"github.com/yigit/scms/internal/pkg/tokenstore"
)

// DefaultConfigPath is where the config file is looked up relative to the working directory
const DefaultConfigPath = "configs/config.yaml"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Store                appRepos.Store
	Services             *appServices.Services
	JWTService           *pkgAuth.JWTService
	Denylist             tokenstore.Denylist
	AuthMiddleware       *appMiddleware.AuthMiddleware
	AuthController       *appControllers.AuthController
	UserController       *appControllers.UserController
	CourseController     *appControllers.CourseController
	StudentController    *appControllers.StudentController
	EnrollmentController *appControllers.EnrollmentController
	Logger               zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	format := strings.ToLower(cfg.Logging.Format)
	lgr := logger.Configure(logger.Config{
		Level:   cfg.Logging.Level,
		Pretty:  format == "text" || format == "console",
		Service: "scms-api",
	})
	lgr.Info().Str("logLevel", logger.ParseLevel(cfg.Logging.Level).String()).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// ConnectDatabase opens the connection pool and verifies it with a ping.
func ConnectDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(context.Background(), cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")
	return database, nil
}

// RunMigrations applies the SQL files of the configured migrations directory.
func RunMigrations(ctx context.Context, cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (int, error) {
	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return 0, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	applied, err := appMigrations.NewMigrator(database.Pool, lgr).MigrateFromDirectory(ctx, migrationsDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return applied, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", applied).Msg("Database migrations successfully applied.")
	return applied, nil
}

// SetupDatabase connects and migrates, returning the pgx-backed store.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, *appRepos.PostgresStore, error) {
	database, err := ConnectDatabase(cfg, lgr)
	if err != nil {
		return nil, nil, err
	}
	if _, err := RunMigrations(context.Background(), cfg, database, lgr); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, appRepos.NewPostgresStore(database), nil
}

// SetupDenylist connects to redis when enabled and otherwise returns the in-process denylist.
// The returned close function is never nil.
func SetupDenylist(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (tokenstore.Denylist, func() error, error) {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Redis disabled, using in-memory access token denylist")
		return tokenstore.NewMemory(), func() error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := tokenstore.ConnectRedis(ctx, tokenstore.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		lgr.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		return nil, nil, err
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Access token denylist backed by redis")
	return rdb, rdb.Close, nil
}

// NewJWTService builds the token service from the jwt config section.
func NewJWTService(cfg *config.Config) *pkgAuth.JWTService {
	return pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 7*24*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})
}

// BuildServices wires the service layer over store.
func BuildServices(cfg *config.Config, store appRepos.Store, denylist tokenstore.Denylist, lgr zerolog.Logger) (*appServices.Services, *pkgAuth.JWTService) {
	jwtService := NewJWTService(cfg)
	svc := appServices.NewServices(store, appServices.Options{
		JWTService: jwtService,
		Denylist:   denylist,
		BcryptCost: cfg.Auth.BcryptCost,
	}, lgr)
	return svc, jwtService
}

// BuildDependencies initializes services, middleware and controllers.
func BuildDependencies(cfg *config.Config, store appRepos.Store, denylist tokenstore.Denylist, lgr zerolog.Logger) *Dependencies {
	deps := &Dependencies{Store: store, Denylist: denylist, Logger: lgr}

	deps.Services, deps.JWTService = BuildServices(cfg, store, denylist, lgr)
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.Services.AuthService)

	deps.AuthController = appControllers.NewAuthController(deps.Services.AuthService, lgr)
	deps.UserController = appControllers.NewUserController(deps.Services.UserService)
	deps.CourseController = appControllers.NewCourseController(deps.Services.CourseService, deps.Services.EnrollmentService)
	deps.StudentController = appControllers.NewStudentController(deps.Services.StudentService, deps.Services.EnrollmentService)
	deps.EnrollmentController = appControllers.NewEnrollmentController(deps.Services.EnrollmentService)

	return deps
}

// PrepareData runs the startup maintenance: profiles for student users that lack one
// and removal of expired refresh tokens. Failures are logged, not fatal.
func PrepareData(ctx context.Context, deps *Dependencies) {
	created, err := deps.Services.StudentService.BackfillProfiles(ctx)
	if err != nil {
		deps.Logger.Error().Err(err).Msg("Failed to backfill student profiles, proceeding anyway...")
	} else if len(created) > 0 {
		deps.Logger.Info().Int("created", len(created)).Msg("Missing student profiles created")
	}

	if _, err := deps.Services.AuthService.CleanupExpiredTokens(ctx); err != nil {
		deps.Logger.Error().Err(err).Msg("Failed to clean up expired refresh tokens")
	}
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case "production", "release":
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	appMiddleware.RegisterJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger())
	router.Use(appMiddleware.CORS(cfg.AllowedOrigins(), helpers.ParseDuration(cfg.CORS.MaxAge, 12*time.Hour)))

	// Setup Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json"), ginSwagger.DefaultModelsExpandDepth(1)))

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.UserController,
		deps.CourseController,
		deps.StudentController,
		deps.EnrollmentController,
		deps.AuthMiddleware,
	)

	// Test endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
