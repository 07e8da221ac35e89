package main

import (
	"os"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/cmd/hedgectl/commands"
)

// main is the entry point for the hedge-control CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
