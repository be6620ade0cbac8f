package main

import (
	"fmt"
	"os"

	"github.com/go-delve/dwarfdb/cmd/dwarfdb/cmds"
	"github.com/go-delve/dwarfdb/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.DwarfdbVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
