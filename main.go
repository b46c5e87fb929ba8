package main

import (
	"fmt"
	"os"

	"github.com/ekaya-inc/ekaya-audit/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cmd := cli.NewRootCommand(Version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
