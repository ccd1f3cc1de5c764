// Package main is the entry point for the bunker application.
package main

import (
	"os"

	"github.com/jmylchreest/bunker/cmd/bunker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
