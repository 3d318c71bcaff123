package main

import (
	"fmt"
	"os"

	"github.com/spyglass-go/spyglass/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spyglass:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
