package main

import (
	"os"

	"modpack/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
