package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chilltask/internal/archive"
	"github.com/chilltask/internal/config"
	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/jobqueue"
	"github.com/chilltask/internal/logging"
	"github.com/chilltask/internal/secrets"
	"github.com/chilltask/internal/slack"
	"github.com/chilltask/internal/store"
	"github.com/chilltask/internal/summary"
)

// services bundles the wired application components shared by the
// serve, report and sync commands.
type services struct {
	cfg          *config.Config
	store        *store.Store
	chat         *slack.Client
	repoHost     *github.Client
	syncer       *archive.Syncer
	engine       *summary.Engine
	slackSecret  *secrets.Cache
	githubSecret *secrets.Cache
	queueConfig  *jobqueue.QueueConfig
}

// buildServices loads configuration and wires the component graph.
func buildServices(ctx context.Context, c *cli.Context) (*services, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	db, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slackToken := secrets.NewCache(secrets.Static(cfg.Slack.BotToken), cfg.Secrets.TTL, nil)
	githubToken := secrets.NewCache(secrets.Static(cfg.GitHub.Token), cfg.Secrets.TTL, nil)

	chat := slack.NewClient(slackToken.Get)
	repoHost := github.NewClient(githubToken.Get, cfg.GitHub.BaseURL)
	syncer := archive.NewSyncer(repoHost, db)
	engine := summary.NewEngine(repoHost, db, nil)

	queueConfig := jobqueue.DefaultQueueConfig()
	if cfg.Report.Interval > 0 {
		queueConfig.ReportInterval = cfg.Report.Interval
	}

	return &services{
		cfg:          cfg,
		store:        db,
		chat:         chat,
		repoHost:     repoHost,
		syncer:       syncer,
		engine:       engine,
		slackSecret:  secrets.NewCache(secrets.Static(cfg.Slack.SigningSecret), cfg.Secrets.TTL, nil),
		githubSecret: secrets.NewCache(secrets.Static(cfg.GitHub.WebhookSecret), cfg.Secrets.TTL, nil),
		queueConfig:  queueConfig,
	}, nil
}

func (s *services) close() {
	s.store.Close()
}
