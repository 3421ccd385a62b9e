package main

import (
	"os"

	"github.com/dpshade/prompthive/internal/cli"
)

var version = "0.1.0"

func main() {
	os.Exit(cli.NewApp(version, cli.StdStreams()).Execute(os.Args[1:]))
}
