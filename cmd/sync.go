package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chilltask/internal/slack"
)

// SyncCommand returns the CLI command for backfilling a channel's
// history into its mapped repositories.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Backfill a channel's message history into its mapped repositories",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "channel",
				Usage:    "Slack channel ID to backfill",
				Required: true,
			},
		},
		Action: runSync,
	}
}

func runSync(c *cli.Context) error {
	svc, err := buildServices(c.Context, c)
	if err != nil {
		return err
	}
	defer svc.close()

	channelID := c.String("channel")
	mappings, err := svc.store.ListActiveByChannel(c.Context, channelID)
	if err != nil {
		return fmt.Errorf("failed to list mappings: %w", err)
	}
	if len(mappings) == 0 {
		return fmt.Errorf("no active mappings for channel %s", channelID)
	}

	var messages []slack.Message
	pager := svc.chat.History(channelID)
	for {
		page, more, err := pager.Next(c.Context)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		messages = append(messages, page...)
		if !more {
			break
		}
	}
	log.Info().Str("channel", channelID).Int("messages", len(messages)).Msg("history fetched")

	threads := slack.GroupThreads(messages)
	names := svc.chat.ResolveNames(c.Context, messages)
	for _, mapping := range mappings {
		result := svc.syncer.ArchiveThreads(c.Context, mapping, threads, names)
		fmt.Printf("%s: %d created, %d skipped, %d failed\n",
			mapping.RepoKey(), result.Created, result.Skipped, result.Failed)
		if result.Failed > 0 {
			return fmt.Errorf("%d threads failed to archive", result.Failed)
		}
	}
	return nil
}
