package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version = "0.0.1"
)

func main() {
	app := &cli.App{
		Name:    "dicomul",
		Usage:   "DICOM Upper Layer association utility: send C-ECHO, run a minimal SCP",
		Version: version,
		Commands: []*cli.Command{
			echoCommand(),
			storeSCPCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
