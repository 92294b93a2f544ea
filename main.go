package main

import (
	"os"

	"github.com/teslamon/teslamon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
