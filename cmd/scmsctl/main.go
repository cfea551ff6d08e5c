package main

import (
	"os"

	"github.com/yigit/scms/internal/admincli"
	"github.com/yigit/scms/internal/pkg/logger"
)

func main() {
	if err := admincli.NewApp(admincli.OpenPostgres).Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("scmsctl failed")
		os.Exit(1)
	}
}
