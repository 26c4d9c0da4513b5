// Command dusa compiles and solves finite-choice logic programs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dusa/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own report to stdout; stderr gets the reason.
		fmt.Fprintln(os.Stderr, "dusa:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
