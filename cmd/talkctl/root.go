package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/config"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

// commandContext loads configuration and components on first use so that
// commands like "access" run without any environment.
type commandContext struct {
	envFile *string
	verbose *bool

	cfg     *config.Config
	closers []func()
}

func (c *commandContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(*c.envFile)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	if *c.verbose {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (c *commandContext) resolver(cmd *cobra.Command) (*media.Resolver, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	m, err := cfg.BuildMedia()
	if err != nil {
		return nil, err
	}
	return cfg.BuildResolver(m.Signer, media.WithLogger(c.logger(cmd))), nil
}

func (c *commandContext) repository(ctx context.Context) (talkonpaper.Repository, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	repo, closer, err := cfg.BuildRepository(ctx)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closer)
	return repo, nil
}

func (c *commandContext) service(cmd *cobra.Command) (talkonpaper.Service, error) {
	repo, err := c.repository(cmd.Context())
	if err != nil {
		return nil, err
	}
	resolver, err := c.resolver(cmd)
	if err != nil {
		return nil, err
	}
	return talkonpaper.New(
		talkonpaper.WithRepository(repo),
		talkonpaper.WithResolver(resolver),
		talkonpaper.WithLogger(c.logger(cmd)),
	)
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newRootCommand() *cobra.Command {
	var envFile string
	var verbose bool
	ctx := &commandContext{envFile: &envFile, verbose: &verbose}

	rootCmd := &cobra.Command{
		Use:           "talkctl",
		Short:         "TalkOnPaper catalog and media tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(newAccessCommand())
	rootCmd.AddCommand(newSignCommand(ctx))
	rootCmd.AddCommand(newMetaCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newTalksCommand(ctx))
	rootCmd.AddCommand(newUserCommand(ctx))

	return rootCmd
}
