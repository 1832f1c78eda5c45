package main

import (
	"os"

	"babcia/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.New("babciactl").Er("command failed", err)
		os.Exit(1)
	}
}
