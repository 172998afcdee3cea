package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"invoicetrack/internal/config"
	"invoicetrack/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	// keep stdout free for command output
	cfg.Log.Output = "stderr"
	if err := logger.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}

	Execute(cfg)
}
