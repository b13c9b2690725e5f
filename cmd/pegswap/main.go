package main

import (
	"os"

	"github.com/pegswap-experiment/pegswap/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
