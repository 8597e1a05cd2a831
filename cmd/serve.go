package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chilltask/internal/api"
	"github.com/chilltask/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the relay server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the ChillTask webhook relay server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the HTTP server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, c)
	if err != nil {
		return err
	}
	defer svc.close()

	queue, err := jobqueue.NewJobQueue(jobqueue.Deps{
		Store:         svc.store,
		Chat:          svc.chat,
		Syncer:        svc.syncer,
		Engine:        svc.engine,
		ReportChannel: svc.cfg.Slack.ReportChannel,
	}, svc.queueConfig)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		if err := queue.Stop(c.Context); err != nil {
			log.Warn().Err(err).Msg("job queue shutdown incomplete")
		}
	}()

	port := svc.cfg.Server.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	server := api.NewServer(port, api.Deps{
		Events:       svc.store,
		Queue:        queue,
		SlackSecret:  svc.slackSecret,
		GitHubSecret: svc.githubSecret,
		EventTTL:     svc.queueConfig.EventTTL,
	})

	log.Info().Int("port", port).Msg("starting ChillTask server")
	return server.Start(ctx)
}
