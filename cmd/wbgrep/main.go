// Package main provides the entry point for the wbgrep CLI.
package main

import (
	"os"

	"github.com/wb200/wb-grep/cmd/wbgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
