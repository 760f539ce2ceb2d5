// inputctl replays input traces through the input hub and manages its
// configuration.
package main

import (
	"fmt"
	"os"

	"inputkit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
