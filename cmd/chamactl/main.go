package main

import (
	"os"

	"github.com/chamapay/backend/cmd/chamactl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
