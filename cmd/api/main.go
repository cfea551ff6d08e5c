package main

import (
	"flag"
	"os"

	"github.com/yigit/scms/internal/bootstrap"
	"github.com/yigit/scms/internal/pkg/logger"
	"github.com/yigit/scms/internal/server"
)

// @title Student Course Management API
// @version 1.0
// @description API for managing students, the course catalog and enrollments
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization, as "Bearer <token>"

func main() {
	configPath := flag.String("config", bootstrap.DefaultConfigPath, "path to the config file")
	flag.Parse()

	srv, err := server.NewServer(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
