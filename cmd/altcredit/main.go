package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/altcredit/internal/app"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// cli carries the state shared by the subcommands. Clients are opened on
// first use so that offline commands never touch the network.
type cli struct {
	configPath string
	logLevel   string

	cfg  *config.Config
	log  zerolog.Logger
	deps *app.App
}

func main() {
	c := &cli{}
	rootCmd := newRootCmd(c)

	err := rootCmd.Execute()
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "altcredit",
		Short:         "Operator tooling for the alternative credit score",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (or set ALTCREDIT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(pullCmd(c))
	rootCmd.AddCommand(loadCmd(c))
	rootCmd.AddCommand(queryCmd(c))
	rootCmd.AddCommand(spendCmd(c))
	rootCmd.AddCommand(scoreCmd(c))
	rootCmd.AddCommand(archiveCmd(c))

	return rootCmd
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.cfg = cfg
	c.log = logger.FromConfig(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// commandContext returns the command context carrying the CLI logger.
func (c *cli) commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx, c.log)
}

// open connects the configured clients once per invocation.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	deps, err := app.Open(ctx, c.cfg, metrics.New())
	if err != nil {
		return nil, err
	}
	c.deps = deps
	return deps, nil
}

func (c *cli) close() {
	if c.deps == nil {
		return
	}
	if err := c.deps.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to close clients")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
