package main

import (
	"os"

	"github.com/milpatel11/sk-ui-sub001/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
