package main

import (
	"os"

	"github.com/autogenius/autogenius/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
