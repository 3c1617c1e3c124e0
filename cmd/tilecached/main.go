// Package main is the entry point for the tilecached server.
package main

import (
	"os"

	"github.com/gridpoint/tilecached/cmd/tilecached/app"
	"github.com/gridpoint/tilecached/internal/logger"
)

func main() {
	logger.Initialize()
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
