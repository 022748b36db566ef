// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// chipmigrate inspects a legacy controller's fabric configuration
// file, reports the fabrics it holds and optionally verifies their
// certificate chains and rewrites the file. The heavy lifting all
// lives in internal/chipconfig; this command is a thin front end.
package main

import (
	"fmt"
	"os"

	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
)

const usageDoc = `usage: chipmigrate [options] <config-file>

Load a legacy fabric configuration file and print a summary of its
contents. With --out the loaded configuration is written back out,
which round-trips every key byte for byte.
`

func main() {
	os.Exit(Main(os.Args[1:]))
}

// Main runs the command and returns the process exit code.
func Main(args []string) int {
	var (
		format    string
		verify    bool
		out       string
		logConfig string
	)
	flags := gnuflag.NewFlagSetWithFlagKnownAs("chipmigrate", gnuflag.ContinueOnError, "option")
	flags.StringVar(&format, "format", "yaml", "output format (yaml|json)")
	flags.BoolVar(&verify, "verify", false, "verify each fabric's certificate chain")
	flags.StringVar(&out, "out", "", "write the round-tripped configuration to this path")
	flags.StringVar(&logConfig, "log-config", "", "loggo configuration, e.g. \"<root>=DEBUG\"")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usageDoc)
		flags.PrintDefaults()
	}
	if err := flags.Parse(true, args); err != nil {
		if err == gnuflag.ErrHelp {
			return 0
		}
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}
	if logConfig != "" {
		if err := loggo.ConfigureLoggers(logConfig); err != nil {
			fmt.Fprintf(os.Stderr, "chipmigrate: %v\n", err)
			return 2
		}
	}

	if err := run(flags.Arg(0), format, verify, out, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "chipmigrate: %v\n", err)
		return 1
	}
	return 0
}
