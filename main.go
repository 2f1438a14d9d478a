package main

import (
	"os"

	"github.com/gridmill/gridmill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
