package main

import (
	"os"

	"github.com/nakajima/serverdata/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
