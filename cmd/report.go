package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// ReportCommand returns the CLI command for running one issue status
// report cycle immediately, outside the server's schedule.
func ReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Run the issue status report once and post it to Slack",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print reports instead of posting them",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	svc, err := buildServices(c.Context, c)
	if err != nil {
		return err
	}
	defer svc.close()

	mappings, err := svc.store.ListActive(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list mappings: %w", err)
	}
	if len(mappings) == 0 {
		fmt.Println("No active channel mappings, nothing to report")
		return nil
	}

	seen := map[string]bool{}
	var failed int
	for _, mapping := range mappings {
		if seen[mapping.RepoKey()] {
			continue
		}
		seen[mapping.RepoKey()] = true

		report, err := svc.engine.Run(c.Context, mapping.RepoOwner, mapping.RepoName)
		if err != nil {
			failed++
			log.Error().Str("repo", mapping.RepoKey()).Err(err).Msg("report failed")
			continue
		}

		if c.Bool("dry-run") {
			fmt.Println(report.Message)
			fmt.Println()
			continue
		}
		if err := svc.chat.PostMessage(c.Context, svc.cfg.Slack.ReportChannel, report.Message); err != nil {
			failed++
			log.Error().Str("repo", mapping.RepoKey()).Err(err).Msg("failed to post report")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, len(seen))
	}
	return nil
}
