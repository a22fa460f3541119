package main

import (
	"os"

	"bilancio/internal/cli"
	"bilancio/internal/commands"
)

func main() {
	cli.LoadEnvFile()
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
