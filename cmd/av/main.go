package main

import (
	"os"

	"arcvault/cmd/av/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
