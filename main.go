package main

import (
	"os"

	"github.com/Hoangnph/stock-tracking-data/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
