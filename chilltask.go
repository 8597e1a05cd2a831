package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chilltask/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "chilltask",
		Usage:   "Relay Slack conversations into GitHub-backed Markdown archives",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "chilltask.toml",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.SyncCommand(),
			cmd.ReportCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
