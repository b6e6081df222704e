package main

import (
	"os"

	"github.com/eculver/connect-flows/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
